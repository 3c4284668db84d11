package report

import (
	"io"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"gopkg.in/yaml.v3"
)

// YAMLWriter 输出YAML
type YAMLWriter struct {
	output io.Writer
}

// NewYAMLWriter 创建YAMLWriter
func NewYAMLWriter(output io.Writer) *YAMLWriter {
	return &YAMLWriter{output: output}
}

// Write 实现Writer接口
func (w *YAMLWriter) Write(report *models.ScrapeReport) error {
	enc := yaml.NewEncoder(w.output)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
