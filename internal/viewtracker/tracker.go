// Package viewtracker counts a post view once a reader has stayed past a dwell
// threshold. Every mount counts on its own; repeat visits are not de-duplicated.
package viewtracker

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

const DefaultDelay = time.Second

type Recorder interface {
	RecordView(ctx context.Context, id string) error
}

type Option func(*Tracker)

func WithDelay(d time.Duration) Option {
	return func(t *Tracker) { t.delay = d }
}

func WithEnabled(on bool) Option {
	return func(t *Tracker) { t.enabled = on }
}

// WithValidator replaces the default non-blank check on identifiers.
func WithValidator(valid func(id string) bool) Option {
	return func(t *Tracker) { t.valid = valid }
}

// WithRecordTimeout bounds the background increment request.
func WithRecordTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.recordTimeout = d }
}

type Tracker struct {
	recorder      Recorder
	delay         time.Duration
	enabled       bool
	valid         func(string) bool
	recordTimeout time.Duration

	// mu guards closed and every wg.Add
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(recorder Recorder, opts ...Option) *Tracker {
	t := &Tracker{
		recorder:      recorder,
		delay:         DefaultDelay,
		enabled:       true,
		valid:         func(id string) bool { return strings.TrimSpace(id) != "" },
		recordTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Session is one mounted reading of a post.
type Session struct {
	mu       sync.Mutex
	timer    *time.Timer
	mounted  bool
	recorded bool
}

// Mount arms the dwell timer. A disabled or closed tracker or an invalid id yields an
// inert session.
func (t *Tracker) Mount(id string) *Session {
	s := &Session{mounted: true}
	if !t.enabled || !t.valid(id) || t.isClosed() {
		return s
	}

	s.timer = time.AfterFunc(t.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.mounted || !t.begin() {
			return
		}
		s.recorded = true
		go t.record(id)
	})
	return s
}

// begin registers one record request unless the tracker is closed.
func (t *Tracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *Tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tracker) record(id string) {
	defer t.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), t.recordTimeout)
	defer cancel()
	if err := t.recorder.RecordView(ctx, id); err != nil {
		log.Printf("viewtracker: recording view for %s: %v", id, err)
	}
}

// Close stops recording views and blocks until in-flight record requests finish.
// Sessions whose dwell threshold passes after Close count nothing.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// Unmount cancels the pending view if the dwell threshold has not been reached.
// Calling it more than once is harmless.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = false
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Recorded reports whether this session's view was counted.
func (s *Session) Recorded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}
