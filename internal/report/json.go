package report

import (
	"encoding/json"
	"io"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

// JSONWriter 输出JSON,字段与HTTP接口一致
type JSONWriter struct {
	output io.Writer
}

// NewJSONWriter 创建JSONWriter
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{output: output}
}

// Write 实现Writer接口
func (w *JSONWriter) Write(report *models.ScrapeReport) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}
