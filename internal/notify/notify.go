package notify

import (
	"context"
	"sync"

	"go-gin-bus-reservation/pkg/logger"

	"go.uber.org/zap"
)

// Level 通知等級
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notifier 一次性、不回傳結果的使用者通知
type Notifier interface {
	Notify(level Level, message string)
}

// Entry 一則通知
type Entry struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// LogNotifier 以 zap 結構化紀錄輸出通知
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notify")}
}

func (n *LogNotifier) Notify(level Level, message string) {
	fields := []zap.Field{zap.String("level", string(level)), zap.String("message", message)}
	if level == LevelError {
		n.log.Warn("notification", fields...)
		return
	}
	n.log.Info("notification", fields...)
}

// Recorder 記錄所有通知，供 HTTP 響應與測試使用
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{entries: make([]Entry, 0)}
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message})
}

// Entries 回傳目前所有通知的副本
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last 最後一則通知
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

type recorderKey struct{}

// WithRecorder 將 per-request 的 Recorder 掛到 context 上
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFrom 取出 context 上的 Recorder
func RecorderFrom(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(recorderKey{}).(*Recorder)
	return r, ok && r != nil
}

// Send 通知注入的 Notifier，若 context 帶有 Recorder 也一併記錄
func Send(ctx context.Context, n Notifier, level Level, message string) {
	if n != nil {
		n.Notify(level, message)
	}
	if r, ok := RecorderFrom(ctx); ok {
		r.Notify(level, message)
	}
}
