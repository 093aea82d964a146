// Package notify implements the single-slot, time-boxed user notification.
//
// There is exactly one slot: a new Show replaces whatever is pending, and the
// visible state is always determined by the most recent call.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the severity class of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Phase is where a notification is in its show/fade/hide cycle.
type Phase string

const (
	PhaseHidden  Phase = "hidden"
	PhaseVisible Phase = "visible"
	PhaseFading  Phase = "fading"
)

const (
	DefaultDuration = 3 * time.Second
	DefaultFade     = 300 * time.Millisecond
)

// Notification is a snapshot of the slot.
type Notification struct {
	ID      string        `json:"id"`
	Message string        `json:"message"`
	Kind    Kind          `json:"kind"`
	Phase   Phase         `json:"phase"`
	Opacity float64       `json:"opacity"`
	Visible bool          `json:"visible"`
	Shown   time.Time     `json:"shown_at"`
	For     time.Duration `json:"duration"`
}

// Sink receives slot transitions. Sinks are called synchronously with the
// slot locked and must not call back into the Service.
type Sink interface {
	Shown(n Notification)
	Hidden(n Notification)
}

// Notifier is what workflows depend on.
type Notifier interface {
	Show(message string, kind Kind, duration time.Duration) Notification
}

// Options tune timing.
type Options struct {
	Duration time.Duration // default display time
	Fade     time.Duration // fade-out time before hiding
}

// Service owns the notification slot.
type Service struct {
	mu     sync.Mutex
	gen    uint64
	cur    Notification
	timer  *time.Timer
	sinks  []Sink
	opts   Options
	logger *slog.Logger
}

var _ Notifier = (*Service)(nil)

// New creates a Service. Zero options fall back to DefaultDuration and
// DefaultFade.
func New(opts Options, logger *slog.Logger, sinks ...Sink) *Service {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Fade <= 0 {
		opts.Fade = DefaultFade
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cur:    Notification{Phase: PhaseHidden},
		sinks:  sinks,
		opts:   opts,
		logger: logger.With(slog.String("component", "notify")),
	}
}

// AddSink registers another sink.
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Show replaces the slot with a new notification and schedules its fade-out
// after duration (the default when duration <= 0). Timers of the replaced
// notification are cancelled.
func (s *Service) Show(message string, kind Kind, duration time.Duration) Notification {
	if duration <= 0 {
		duration = s.opts.Duration
	}
	switch kind {
	case KindSuccess, KindError, KindInfo:
	default:
		kind = KindInfo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimer()
	s.gen++
	gen := s.gen
	s.cur = Notification{
		ID:      uuid.NewString(),
		Message: message,
		Kind:    kind,
		Phase:   PhaseVisible,
		Opacity: 1,
		Visible: true,
		Shown:   time.Now(),
		For:     duration,
	}
	s.logger.Debug("notification shown", slog.String("kind", string(kind)), slog.String("message", message))
	for _, sink := range s.sinks {
		sink.Shown(s.cur)
	}
	s.timer = time.AfterFunc(duration, func() { s.fadeOut(gen) })
	return s.cur
}

// Success, Error and Info show with the default duration.
func (s *Service) Success(message string) Notification {
	return s.Show(message, KindSuccess, 0)
}

func (s *Service) Error(message string) Notification {
	return s.Show(message, KindError, 0)
}

func (s *Service) Info(message string) Notification {
	return s.Show(message, KindInfo, 0)
}

// State returns the current slot.
func (s *Service) State() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Dismiss hides the current notification immediately.
func (s *Service) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cur.Visible {
		return
	}
	s.stopTimer()
	s.gen++
	s.hide()
}

// Close cancels pending timers. The slot keeps its last state.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer()
	s.gen++
}

func (s *Service) fadeOut(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.cur.Phase = PhaseFading
	s.cur.Opacity = 0
	s.timer = time.AfterFunc(s.opts.Fade, func() { s.finish(gen) })
}

func (s *Service) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.timer = nil
	s.hide()
}

func (s *Service) hide() {
	s.cur.Phase = PhaseHidden
	s.cur.Opacity = 0
	s.cur.Visible = false
	for _, sink := range s.sinks {
		sink.Hidden(s.cur)
	}
}

func (s *Service) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
