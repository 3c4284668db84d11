package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
)

// eventStream 将进度事件写为SSE帧
//
//	event: <type>
//	data: <json>
//
// complete 事件的 data 为报告本身,其余事件为事件数据
type eventStream struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, fmt.Errorf("响应不支持流式输出")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	s := &eventStream{w: w, rc: http.NewResponseController(w)}
	_ = s.rc.Flush()
	return s, nil
}

// Emit 实现models.ProgressSink接口
func (s *eventStream) Emit(event models.ProgressEvent) {
	var payload any = event.Data
	if event.Type == models.EventComplete {
		if report, ok := event.Data["report"]; ok {
			payload = report
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		utils.Warnf("序列化SSE事件失败 [%s]: %v", event.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 客户端断开后写入失败,由context取消结束爬取
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return
	}
	_ = s.rc.Flush()
}
