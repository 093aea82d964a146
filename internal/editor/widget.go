// Package editor manages the lifecycle of the rich-text editor instance.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDestroyed is returned by operations on a destroyed widget or manager.
var ErrDestroyed = errors.New("editor: destroyed")

// Widget is the opaque rich-text component.
type Widget interface {
	// Create completes asynchronous construction. The widget is unusable
	// until it returns nil.
	Create(ctx context.Context) error
	// Destroy tears the widget down. It must be safe to call more than once.
	Destroy()
	// Content returns the serialized document.
	Content(ctx context.Context) (string, error)
}

// Factory builds a widget bound to container with initial content.
type Factory func(container, initial string) Widget

// ThemeAssets loads and releases the presentation resource of a theme.
type ThemeAssets interface {
	Load(ctx context.Context, theme string) error
	Release(theme string)
}

// Buffer is an in-memory Widget holding plain markdown text.
type Buffer struct {
	mu        sync.Mutex
	container string
	text      string
	delay     time.Duration
	created   bool
	destroyed bool
}

var _ Widget = (*Buffer)(nil)

// NewBuffer returns an unconstructed buffer. delay simulates slow construction.
func NewBuffer(container, initial string, delay time.Duration) *Buffer {
	return &Buffer{container: container, text: initial, delay: delay}
}

// BufferFactory returns a Factory producing Buffers.
func BufferFactory(delay time.Duration) Factory {
	return func(container, initial string) Widget {
		return NewBuffer(container, initial, delay)
	}
}

func (b *Buffer) Create(ctx context.Context) error {
	if b.delay > 0 {
		t := time.NewTimer(b.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrDestroyed
	}
	b.created = true
	return nil
}

func (b *Buffer) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

func (b *Buffer) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return "", ErrDestroyed
	}
	if !b.created {
		return "", errors.New("editor: buffer not constructed")
	}
	return b.text, nil
}

// SetText replaces the document, as a user typing would.
func (b *Buffer) SetText(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrDestroyed
	}
	b.text = text
	return nil
}

// Container returns the container the buffer is bound to.
func (b *Buffer) Container() string {
	return b.container
}
