package utils

import (
	"io"
	"os"
	"sync"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// NewProgressBar 创建进度条
// max为-1时显示为不定长的旋转指示器(日期模式事先不知道页数)
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return newProgressBar(os.Stderr, max, description)
}

func newProgressBar(w io.Writer, max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("页"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// ProgressBarSink 将爬取进度渲染为终端进度条
type ProgressBarSink struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewProgressBarSink 创建进度条接收者,out为nil时写到标准错误
func NewProgressBarSink(out io.Writer) *ProgressBarSink {
	if out == nil {
		out = os.Stderr
	}
	return &ProgressBarSink{out: out}
}

// Emit 实现models.ProgressSink接口
func (s *ProgressBarSink) Emit(event models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case models.EventStart:
		total := -1
		if pages, ok := event.Data["totalPages"].(int); ok && pages > 0 {
			total = pages
		}
		desc, _ := event.Data["galleryId"].(string)
		s.bar = newProgressBar(s.out, total, "爬取 "+desc)
	case models.EventPageComplete:
		if s.bar != nil {
			_ = s.bar.Add(1)
		}
	case models.EventComplete, models.EventError:
		if s.bar != nil {
			_ = s.bar.Finish()
			s.bar = nil
		}
	}
}

// LogSink 将进度事件写入日志
type LogSink struct {
	Logger zerolog.Logger
}

// NewLogSink 创建日志接收者
func NewLogSink() LogSink {
	return LogSink{Logger: Component("progress")}
}

// Emit 实现models.ProgressSink接口
func (s LogSink) Emit(event models.ProgressEvent) {
	var e *zerolog.Event
	switch event.Type {
	case models.EventWarning:
		e = s.Logger.Warn()
	case models.EventError:
		e = s.Logger.Error()
	case models.EventProgress, models.EventPageComplete:
		e = s.Logger.Debug()
	default:
		e = s.Logger.Info()
	}

	msg, _ := event.Data["message"].(string)
	for k, v := range event.Data {
		if k == "message" || k == "report" {
			continue
		}
		e = e.Interface(k, v)
	}
	e.Str("event", string(event.Type)).Msg(msg)
}
