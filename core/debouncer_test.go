package core

import (
	"testing"
	"time"

	"github.com/encodeous/reroute/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testDelay = 100 * time.Millisecond

func commitRecorder() (chan state.FailureSet, CommitFunc) {
	commits := make(chan state.FailureSet, 16)
	return commits, func(snapshot state.FailureSet) {
		commits <- snapshot
	}
}

func waitCommit(t *testing.T, commits <-chan state.FailureSet) state.FailureSet {
	t.Helper()
	select {
	case s := <-commits:
		return s
	case <-time.After(10 * testDelay):
		t.Fatal("timed out waiting for a commit")
	}
	return state.FailureSet{}
}

func assertNoCommit(t *testing.T, commits <-chan state.FailureSet, wait time.Duration) {
	t.Helper()
	select {
	case s := <-commits:
		t.Fatalf("unexpected commit %s", s)
	case <-time.After(wait):
	}
}

func TestFailureDebouncer_Coalesces(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	commits, commit := commitRecorder()
	d := NewFailureDebouncer(testDelay, state.DebounceFixed, commit)
	defer d.Stop()

	assert.Equal(t, Idle, d.State())
	assert.True(t, d.NotifyFailure(edge("s1", "s2")))
	assert.Equal(t, Collecting, d.State())
	time.Sleep(testDelay / 2)
	assert.True(t, d.NotifyFailure(edge("s2", "s3")))

	snapshot := waitCommit(t, commits)
	assert.True(t, snapshot.Equal(state.NewFailureSet(edge("s1", "s2"), edge("s2", "s3"))))
	assertNoCommit(t, commits, 2*testDelay)
	assert.Equal(t, uint64(1), d.Commits())
	assert.Equal(t, Idle, d.State())
}

func TestFailureDebouncer_Idempotent(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	commits, commit := commitRecorder()
	d := NewFailureDebouncer(testDelay, state.DebounceFixed, commit)
	defer d.Stop()

	assert.True(t, d.NotifyFailure(edge("s1", "s2")))
	assert.False(t, d.NotifyFailure(edge("s2", "s1")))
	waitCommit(t, commits)

	// known failures do not start a new cycle
	assert.False(t, d.NotifyFailure(edge("s1", "s2")))
	assert.Equal(t, Idle, d.State())
	assertNoCommit(t, commits, 2*testDelay)
	assert.Equal(t, 1, d.Snapshot().Len())
}

func TestFailureDebouncer_FailureDuringCommit(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	started := make(chan state.FailureSet, 4)
	release := make(chan struct{})
	d := NewFailureDebouncer(testDelay, state.DebounceFixed, func(snapshot state.FailureSet) {
		started <- snapshot
		<-release
	})
	defer d.Stop()

	d.NotifyFailure(edge("s1", "s2"))
	first := waitCommit(t, started)
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, Committing, d.State())

	// the running commit is not affected, a follow up is scheduled once it completes
	assert.True(t, d.NotifyFailure(edge("s2", "s3")))
	assert.False(t, d.NotifyFailure(edge("s1", "s2")))
	assert.Equal(t, Committing, d.State())
	assert.Equal(t, 1, first.Len())
	release <- struct{}{}

	require.Eventually(t, func() bool {
		return d.State() == Collecting
	}, 5*testDelay, testDelay/20)
	second := waitCommit(t, started)
	assert.True(t, second.Equal(state.NewFailureSet(edge("s1", "s2"), edge("s2", "s3"))))
	release <- struct{}{}

	require.Eventually(t, func() bool {
		return d.State() == Idle
	}, 5*testDelay, testDelay/20)
	assert.Equal(t, uint64(2), d.Commits())
}

func TestFailureDebouncer_Trailing(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	commits, commit := commitRecorder()
	delay := 2 * testDelay
	d := NewFailureDebouncer(delay, state.DebounceTrailing, commit)
	defer d.Stop()

	start := time.Now()
	d.NotifyFailure(edge("s1", "s2"))
	time.Sleep(delay * 6 / 10)
	d.NotifyFailure(edge("s2", "s3"))

	// a fixed window would have fired at delay
	assertNoCommit(t, commits, delay*8/10)
	snapshot := waitCommit(t, commits)
	assert.GreaterOrEqual(t, time.Since(start), delay*16/10)
	assert.Equal(t, 2, snapshot.Len())
}

func TestFailureDebouncer_Stop(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)
	commits, commit := commitRecorder()
	d := NewFailureDebouncer(testDelay, state.DebounceFixed, commit)

	d.NotifyFailure(edge("s1", "s2"))
	d.Stop()
	assertNoCommit(t, commits, 2*testDelay)
	assert.False(t, d.NotifyFailure(edge("s2", "s3")))
	assert.Zero(t, d.Commits())
}
