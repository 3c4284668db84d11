package models

import "sync"

// EventType 进度事件类型
type EventType string

const (
	EventStart        EventType = "start"
	EventProgress     EventType = "progress"
	EventPageComplete EventType = "pageComplete"
	EventWarning      EventType = "warning"
	EventInfo         EventType = "info"
	EventError        EventType = "error"
	EventComplete     EventType = "complete"
)

// ProgressEvent 爬取过程中发出的进度事件
// Data 在SSE模式下直接序列化为事件的 data 字段
type ProgressEvent struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data"`
}

// ProgressSink 进度事件接收者
// 实现必须允许被多个goroutine并发调用
type ProgressSink interface {
	Emit(event ProgressEvent)
}

// SinkFunc 函数适配器
type SinkFunc func(event ProgressEvent)

// Emit 实现ProgressSink接口
func (f SinkFunc) Emit(event ProgressEvent) { f(event) }

// NopSink 丢弃所有事件
type NopSink struct{}

// Emit 实现ProgressSink接口
func (NopSink) Emit(ProgressEvent) {}

// MultiSink 将事件依次分发给多个接收者
func MultiSink(sinks ...ProgressSink) ProgressSink {
	filtered := make([]ProgressSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return SinkFunc(func(event ProgressEvent) {
		for _, s := range filtered {
			s.Emit(event)
		}
	})
}

// RecordingSink 记录所有事件,供测试和服务端回放使用
type RecordingSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

// Emit 实现ProgressSink接口
func (r *RecordingSink) Emit(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events 返回已记录事件的副本
func (r *RecordingSink) Events() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// OfType 返回指定类型的事件
func (r *RecordingSink) OfType(t EventType) []ProgressEvent {
	var out []ProgressEvent
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// NewEvent 构造事件
func NewEvent(t EventType, message string, kv ...any) ProgressEvent {
	data := map[string]any{}
	if message != "" {
		data["message"] = message
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		data[key] = kv[i+1]
	}
	return ProgressEvent{Type: t, Data: data}
}
