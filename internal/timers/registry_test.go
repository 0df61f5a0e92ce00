package timers

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) (*Registry, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	r := NewRegistry(clock, log.New(io.Discard))
	t.Cleanup(r.Stop)
	return r, clock
}

func advance(t *testing.T, clock *quartz.Mock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock.Advance(d).MustWait(ctx)
}

func TestScheduleFires(t *testing.T) {
	t.Parallel()
	r, clock := testRegistry(t)
	key := KeyFor("chat", clock.Now())

	fired := make(chan Key, 1)
	r.Schedule(key, 30*time.Second, func(_ context.Context, k Key) { fired <- k })
	require.True(t, r.Pending(key))

	advance(t, clock, 29*time.Second)
	select {
	case <-fired:
		t.Fatal("timer fired early")
	default:
	}

	advance(t, clock, time.Second)
	select {
	case got := <-fired:
		assert.Equal(t, key, got)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, r.Pending(key), "fired timers leave the registry")
	assert.Zero(t, r.Len())
}

func TestCancelPreventsFire(t *testing.T) {
	t.Parallel()
	r, clock := testRegistry(t)
	key := KeyFor("chat", clock.Now())

	var fired atomic.Bool
	r.Schedule(key, 10*time.Second, func(context.Context, Key) { fired.Store(true) })

	assert.True(t, r.Cancel(key))
	assert.False(t, r.Cancel(key), "second cancel finds nothing")

	advance(t, clock, 10*time.Second)
	assert.False(t, fired.Load())
}

func TestScheduleReplacesSameKey(t *testing.T) {
	t.Parallel()
	r, clock := testRegistry(t)
	key := KeyFor("chat", clock.Now())

	var first, second atomic.Int32
	r.Schedule(key, 5*time.Second, func(context.Context, Key) { first.Add(1) })
	r.Schedule(key, 10*time.Second, func(context.Context, Key) { second.Add(1) })
	require.Equal(t, 1, r.Len())

	advance(t, clock, 10*time.Second)
	assert.Zero(t, first.Load())
	assert.EqualValues(t, 1, second.Load())
}

func TestCancelChat(t *testing.T) {
	t.Parallel()
	r, clock := testRegistry(t)
	now := clock.Now()

	noop := func(context.Context, Key) {}
	r.Schedule(KeyFor("a", now), time.Minute, noop)
	r.Schedule(KeyFor("a", now.Add(time.Second)), time.Minute, noop)
	r.Schedule(KeyFor("b", now), time.Minute, noop)

	assert.Equal(t, 2, r.CancelChat("a"))
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Pending(KeyFor("b", now)))
}

func TestKeySurvivesReparse(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	parsed, err := time.Parse(time.RFC3339Nano, at.Format(time.RFC3339Nano))
	require.NoError(t, err)
	assert.Equal(t, KeyFor("c", at), KeyFor("c", parsed.In(time.Local)))
}

func TestQuestionKeysAtSameInstantAreDistinct(t *testing.T) {
	t.Parallel()
	r, clock := testRegistry(t)
	now := clock.Now()

	noop := func(context.Context, Key) {}
	r.Schedule(QuestionKey("chat", now, 1), time.Minute, noop)
	r.Schedule(QuestionKey("chat", now, 2), time.Minute, noop)
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Cancel(QuestionKey("chat", now, 1)))
	assert.True(t, r.Pending(QuestionKey("chat", now, 2)))
	assert.False(t, r.Pending(KeyFor("chat", now)))
}

func TestStopDisposesEverything(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	r := NewRegistry(clock, log.New(io.Discard))

	var fired atomic.Bool
	r.Schedule(KeyFor("chat", clock.Now()), time.Second, func(context.Context, Key) { fired.Store(true) })
	r.Stop()

	r.Schedule(KeyFor("chat", clock.Now()), time.Second, func(context.Context, Key) { fired.Store(true) })
	assert.Zero(t, r.Len(), "stopped registry ignores new timers")

	advance(t, clock, time.Second)
	assert.False(t, fired.Load())
}
