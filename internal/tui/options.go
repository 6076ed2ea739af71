package tui

import (
	"context"
	"strings"

	"github.com/hylla/cotiza/internal/app"
)

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context used for board loads and status writes.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithClipboard replaces the clipboard writer used by the copy key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(m *Model) {
		if title = strings.TrimSpace(title); title != "" {
			m.title = title
		}
	}
}

// NoticeChannel returns a notifier that forwards notices to a buffered
// channel. Notices are dropped when the buffer is full so the board never
// blocks on the UI.
func NoticeChannel(size int) (app.Notifier, <-chan app.Notice) {
	if size <= 0 {
		size = 16
	}
	ch := make(chan app.Notice, size)
	notify := func(n app.Notice) {
		select {
		case ch <- n:
		default:
		}
	}
	return notify, ch
}
