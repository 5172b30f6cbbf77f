package viewtracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *countingRecorder) RecordView(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
	return r.err
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// The tests scale the 1000ms dwell / 500ms bounce scenario down by 20x.
const delay = 50 * time.Millisecond

func TestMount_UnmountBeforeDelayRecordsNothing(t *testing.T) {
	rec := &countingRecorder{}
	tr := New(rec, WithDelay(delay))

	s := tr.Mount("post-1")
	time.Sleep(delay / 2)
	s.Unmount()

	time.Sleep(2 * delay)
	tr.Close()
	assert.Equal(t, 0, rec.count())
	assert.False(t, s.Recorded())
}

func TestMount_StayingMountedRecordsOnce(t *testing.T) {
	rec := &countingRecorder{}
	tr := New(rec, WithDelay(delay))

	s := tr.Mount("post-1")
	require.Eventually(t, s.Recorded, time.Second, 5*time.Millisecond)

	time.Sleep(3 * delay)
	s.Unmount()
	tr.Close()

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"post-1"}, rec.calls)
}

func TestMount_RemountCountsAgain(t *testing.T) {
	rec := &countingRecorder{}
	tr := New(rec, WithDelay(delay))

	for i := 0; i < 2; i++ {
		s := tr.Mount("post-1")
		require.Eventually(t, s.Recorded, time.Second, 5*time.Millisecond)
		s.Unmount()
	}
	tr.Close()
	assert.Equal(t, 2, rec.count())
}

func TestMount_DisabledOrInvalid(t *testing.T) {
	rec := &countingRecorder{}

	off := New(rec, WithDelay(time.Millisecond), WithEnabled(false))
	off.Mount("post-1")

	onlyHex := New(rec, WithDelay(time.Millisecond), WithValidator(func(id string) bool { return len(id) == 24 }))
	onlyHex.Mount("short")

	blank := New(rec, WithDelay(time.Millisecond))
	blank.Mount("   ")

	time.Sleep(20 * time.Millisecond)
	off.Close()
	onlyHex.Close()
	blank.Close()
	assert.Equal(t, 0, rec.count())
}

func TestMount_RecorderErrorIsSwallowed(t *testing.T) {
	rec := &countingRecorder{err: errors.New("db down")}
	tr := New(rec, WithDelay(time.Millisecond))

	s := tr.Mount("post-1")
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Unmount()
	s.Unmount()
	assert.True(t, s.Recorded())
}

func TestClose_StopsPendingSessions(t *testing.T) {
	rec := &countingRecorder{}
	tr := New(rec, WithDelay(delay))

	s := tr.Mount("post-1")
	tr.Close()

	time.Sleep(3 * delay)
	assert.Equal(t, 0, rec.count())
	assert.False(t, s.Recorded())
	s.Unmount()
}

func TestClose_WaitsForInFlightRecord(t *testing.T) {
	release := make(chan struct{})
	rec := &blockingRecorder{release: release}
	tr := New(rec, WithDelay(time.Millisecond))

	s := tr.Mount("post-1")
	require.Eventually(t, s.Recorded, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		tr.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned before the record request finished")
	case <-time.After(2 * delay):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestMount_AfterCloseIsInert(t *testing.T) {
	rec := &countingRecorder{}
	tr := New(rec, WithDelay(time.Millisecond))
	tr.Close()

	s := tr.Mount("post-1")
	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.Recorded())
	assert.Equal(t, 0, rec.count())
}

type blockingRecorder struct {
	release chan struct{}
}

func (r *blockingRecorder) RecordView(ctx context.Context, id string) error {
	<-r.release
	return nil
}
