// Package notify carries transient, non-blocking user notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a short-lived message about one slot
type Notification struct {
	Level   Level
	SlotID  string
	Message string
	Err     error
}

// Notifier receives notifications. Implementations must not block
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification
var Discard Notifier = NotifierFunc(func(Notification) {})

// LogNotifier writes notifications to a slog logger
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}

	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelError
	}
	attrs := []any{"slot_id", n.SlotID, "kind", string(n.Level)}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}
	log.Log(context.Background(), level, n.Message, attrs...)
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded so far
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// For returns the notifications for one slot
func (r *Recorder) For(slotID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.SlotID == slotID {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
