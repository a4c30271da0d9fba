package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendconsole/internal/attendance"
	"attendconsole/internal/queue"
	"attendconsole/internal/recognition"
)

type fakeStats struct {
	mu      sync.Mutex
	dates   []string
	err     error
	delay   time.Duration
	running atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeStats) DailyStats(ctx context.Context, date string) (attendance.Stats, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	if n > f.maxSeen.Load() {
		f.maxSeen.Store(n)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	if f.err != nil {
		return attendance.Stats{}, f.err
	}
	return attendance.Stats{Date: date, TotalStudents: 3, PresentBeforeBreak: 1, TodayAttendance: 1}, nil
}

func (f *fakeStats) Today() string { return "2024-01-10" }

func (f *fakeStats) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dates)
}

type fakeRecognizer struct {
	current   recognition.Recognized
	active    bool
	toggleErr error
	resetErr  error
	resets    int
}

func (f *fakeRecognizer) Toggle(ctx context.Context) (*recognition.ToggleResult, error) {
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	f.active = !f.active
	return &recognition.ToggleResult{Active: f.active}, nil
}

func (f *fakeRecognizer) Current(ctx context.Context) (*recognition.Recognized, error) {
	r := f.current
	return &r, nil
}

func (f *fakeRecognizer) Reset(ctx context.Context) error {
	f.resets++
	return f.resetErr
}

type recorder struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (r *recorder) Publish(ctx context.Context, msg queue.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func newController(stats *fakeStats, rec *fakeRecognizer) (*Controller, *recorder, *recorder) {
	pub, control := &recorder{}, &recorder{}
	c := New(stats, rec, pub, Options{Control: control})
	return c, pub, control
}

func TestRefreshStats(t *testing.T) {
	stats := &fakeStats{}
	c, pub, _ := newController(stats, &fakeRecognizer{})

	got, err := c.RefreshStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", got.Date)

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 3, snap.TotalStudents)
	assert.Equal(t, []string{queue.TypeStats}, pub.types())

	var body attendance.Stats
	require.NoError(t, json.Unmarshal(pub.msgs[0].Body, &body))
	assert.Equal(t, got, body)
}

func TestRefreshStatsFailureKeepsSnapshot(t *testing.T) {
	stats := &fakeStats{}
	c, pub, _ := newController(stats, &fakeRecognizer{})
	_, err := c.RefreshStats(context.Background())
	require.NoError(t, err)

	stats.err = errors.New("db down")
	_, err = c.RefreshStats(context.Background())
	require.Error(t, err)

	snap, ok := c.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, 3, snap.TotalStudents)
	assert.Len(t, pub.types(), 1)
}

func TestSetDate(t *testing.T) {
	stats := &fakeStats{}
	c, _, control := newController(stats, &fakeRecognizer{})

	assert.ErrorIs(t, c.SetDate(context.Background(), "10/01/2024"), attendance.ErrInvalidDate)
	assert.Equal(t, "2024-01-10", c.Date())

	require.NoError(t, c.SetDate(context.Background(), "2024-01-09"))
	assert.Equal(t, "2024-01-09", c.Date())
	_, ok := c.Snapshot()
	assert.False(t, ok)
	assert.Len(t, c.refresh, 1)
	assert.Equal(t, []string{ControlDateSelected}, control.types())

	_, err := c.RefreshStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-09"}, stats.dates)
}

func TestPollRecognitionNotifiesOnce(t *testing.T) {
	rec := &fakeRecognizer{current: recognition.Recognized{Name: "Ada", Status: "✅ Marked!"}}
	c, pub, _ := newController(&fakeStats{}, rec)
	ctx := context.Background()

	n, err := c.PollRecognition(ctx)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, recognition.OutcomeMarked, n.Outcome)
	// a new marking refreshes stats
	assert.Len(t, c.refresh, 1)

	n, err = c.PollRecognition(ctx)
	require.NoError(t, err)
	assert.Nil(t, n)

	rec.current = recognition.Recognized{Name: "Grace", Status: "ℹ️ Already marked"}
	n, err = c.PollRecognition(ctx)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, recognition.OutcomeAlreadyMarked, n.Outcome)

	assert.Equal(t, []string{queue.TypeRecognition, queue.TypeRecognition}, pub.types())
	assert.Equal(t, "Grace", c.Recognition().Name)
}

func TestToggleRecognitionFollowsService(t *testing.T) {
	rec := &fakeRecognizer{}
	c, pub, _ := newController(&fakeStats{}, rec)

	res, err := c.ToggleRecognition(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.True(t, c.Active())

	rec.toggleErr = errors.New("unreachable")
	_, err = c.ToggleRecognition(context.Background())
	require.Error(t, err)
	assert.True(t, c.Active())
	assert.Equal(t, []string{queue.TypeRecognitionToggled}, pub.types())
}

func TestResetRecognition(t *testing.T) {
	rec := &fakeRecognizer{current: recognition.Recognized{Name: "Ada", Status: "Marked"}, resetErr: errors.New("timeout")}
	c, pub, control := newController(&fakeStats{}, rec)
	_, _ = c.PollRecognition(context.Background())

	err := c.ResetRecognition(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, rec.resets)
	assert.Equal(t, recognition.StatusReady, c.Recognition().Status)
	assert.Equal(t, []string{queue.TypeRecognition, queue.TypeRecognitionReset}, pub.types())
	assert.Equal(t, []string{ControlReset}, control.types())

	// the same person is announced again
	n, _ := c.PollRecognition(context.Background())
	assert.NotNil(t, n)
}

func TestApplyControl(t *testing.T) {
	rec := &fakeRecognizer{current: recognition.Recognized{Name: "Ada", Status: "Marked"}}
	c := New(&fakeStats{}, rec, &recorder{}, Options{})
	_, _ = c.PollRecognition(context.Background())

	c.Apply(queue.Message{Type: ControlReset})
	assert.Equal(t, recognition.StatusReady, c.Recognition().Status)
	assert.Equal(t, 0, rec.resets)

	msg, _ := queue.NewMessage(ControlDateSelected, map[string]string{"date": "2024-01-05"})
	c.Apply(msg)
	assert.Equal(t, "2024-01-05", c.Date())

	bad, _ := queue.NewMessage(ControlDateSelected, map[string]string{"date": "yesterday"})
	c.Apply(bad)
	assert.Equal(t, "2024-01-05", c.Date())
}

func TestRunPollersNeverOverlapThemselves(t *testing.T) {
	stats := &fakeStats{delay: 15 * time.Millisecond}
	rec := &fakeRecognizer{}
	c := New(stats, rec, &recorder{}, Options{StatsEvery: time.Millisecond, RecognitionEvery: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	for i := 0; i < 5; i++ {
		c.Refresh()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}
	assert.GreaterOrEqual(t, stats.calls(), 2)
	assert.Equal(t, int32(1), stats.maxSeen.Load())
}

func TestRefreshReachesRemoteController(t *testing.T) {
	c, _, control := newController(&fakeStats{}, &fakeRecognizer{})

	c.Refresh()
	assert.Len(t, c.refresh, 1)
	assert.Equal(t, []string{ControlRefresh}, control.types())

	worker := New(&fakeStats{}, &fakeRecognizer{}, &recorder{}, Options{})
	worker.Apply(control.msgs[0])
	assert.Len(t, worker.refresh, 1)
}

func TestMirror(t *testing.T) {
	c := New(&fakeStats{}, &fakeRecognizer{}, &recorder{}, Options{})

	other, _ := queue.NewMessage(queue.TypeStats, attendance.Stats{Date: "2024-01-01", TotalStudents: 9})
	c.Mirror(other)
	_, ok := c.Snapshot()
	assert.False(t, ok, "stats for another date are ignored")

	today, _ := queue.NewMessage(queue.TypeStats, attendance.Stats{Date: "2024-01-10", TotalStudents: 4})
	c.Mirror(today)
	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 4, snap.TotalStudents)

	seen, _ := queue.NewMessage(queue.TypeRecognition, recognition.Notification{Name: "Ada", Status: "Marked!", Outcome: recognition.OutcomeMarked})
	c.Mirror(seen)
	assert.Equal(t, recognition.PhaseDetected, c.Recognition().Phase)
	assert.Equal(t, recognition.OutcomeMarked, c.Recognition().Outcome)

	reset, _ := queue.NewMessage(queue.TypeRecognitionReset, recognition.Display{Phase: recognition.PhaseIdle, Status: recognition.StatusReady})
	c.Mirror(reset)
	assert.Equal(t, recognition.Display{Phase: recognition.PhaseIdle, Status: recognition.StatusReady}, c.Recognition())

	toggled, _ := queue.NewMessage(queue.TypeRecognitionToggled, recognition.ToggleResult{Active: true})
	c.Mirror(toggled)
	assert.True(t, c.Active())

	c.Mirror(queue.Message{Type: queue.TypeStats, Body: json.RawMessage(`"garbage"`)})
	snap, _ = c.Snapshot()
	assert.Equal(t, 4, snap.TotalStudents)
}

func TestSplitDeploymentKeepsAPIStateCurrent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications := queue.NewInMemory(32)
	control := queue.NewInMemory(32)

	workerStats := &fakeStats{}
	rec := &fakeRecognizer{current: recognition.Recognized{Name: "Ada", Status: "✅ Marked!"}}
	worker := New(workerStats, rec, notifications, Options{StatsEvery: time.Hour, RecognitionEvery: 5 * time.Millisecond})
	api := New(&fakeStats{}, rec, notifications, Options{Control: control})

	commands, err := control.Consume(ctx)
	require.NoError(t, err)
	go worker.Listen(ctx, commands)
	go worker.Run(ctx)

	messages, err := notifications.Consume(ctx)
	require.NoError(t, err)
	forwarded := api.Follow(ctx, messages)
	go func() {
		for range forwarded {
		}
	}()

	require.Eventually(t, func() bool {
		_, ok := api.Snapshot()
		return ok && api.Recognition().Name == "Ada"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, api.SetDate(ctx, "2024-01-05"))
	require.Eventually(t, func() bool {
		snap, ok := api.Snapshot()
		return ok && snap.Date == "2024-01-05" && worker.Date() == "2024-01-05"
	}, time.Second, 5*time.Millisecond)

	before := workerStats.calls()
	api.Refresh()
	require.Eventually(t, func() bool {
		return workerStats.calls() > before
	}, time.Second, 5*time.Millisecond)
}
