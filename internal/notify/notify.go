// Package notify queues user-facing notices: transient toasts and
// blocking alerts that need acknowledgement.
package notify

import (
	"sync"
	"time"

	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-cms-admin/library/log"
)

// Kind selects how a notice is presented.
type Kind string

const (
	Toast    Kind = "toast"
	Blocking Kind = "blocking"
)

// Level is the severity of a notice.
type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one message for the user.
type Notice struct {
	Kind    Kind
	Level   Level
	Title   string
	Message string
	At      time.Time
}

// Center is a concurrency-safe notice queue.
type Center struct {
	mu      sync.Mutex
	pending []Notice
	wake    chan struct{}
}

// NewCenter creates an empty queue.
func NewCenter() *Center {
	return &Center{wake: make(chan struct{}, 1)}
}

// Push enqueues n.
func (c *Center) Push(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	c.mu.Lock()
	c.pending = append(c.pending, n)
	c.mu.Unlock()

	log.Logger.Debug("notice",
		zap.String("kind", string(n.Kind)),
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message))

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Toast enqueues a transient notice.
func (c *Center) Toast(level Level, msg string) {
	c.Push(Notice{Kind: Toast, Level: level, Message: msg})
}

// Alert enqueues a blocking notice.
func (c *Center) Alert(level Level, title, msg string) {
	c.Push(Notice{Kind: Blocking, Level: level, Title: title, Message: msg})
}

// Drain returns and clears all pending notices in push order.
func (c *Center) Drain() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.pending
	c.pending = nil
	return out
}

// Wait returns a channel that receives after a Push.
func (c *Center) Wait() <-chan struct{} {
	return c.wake
}
