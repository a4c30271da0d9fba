package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"attendconsole/internal/attendance"
	"attendconsole/internal/observability"
	"attendconsole/internal/queue"
	"attendconsole/internal/recognition"
)

// Control message types sent from the API to a controller running elsewhere.
const (
	ControlReset        = "control_recognition_reset"
	ControlDateSelected = "control_date_selected"
	ControlRefresh      = "control_refresh"
)

// StatsSource computes dashboard stats.
type StatsSource interface {
	DailyStats(ctx context.Context, date string) (attendance.Stats, error)
	Today() string
}

// Recognizer is the recognition service.
type Recognizer interface {
	Toggle(ctx context.Context) (*recognition.ToggleResult, error)
	Current(ctx context.Context) (*recognition.Recognized, error)
	Reset(ctx context.Context) error
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Options tune the controller.
type Options struct {
	StatsEvery       time.Duration
	RecognitionEvery time.Duration
	// Control, when set, receives date, refresh and reset commands for a
	// controller running in another process.
	Control Publisher
}

// Controller runs the dashboard's two pollers and holds its state.
type Controller struct {
	stats   StatsSource
	rec     Recognizer
	pub     Publisher
	control Publisher
	tracker *recognition.Tracker

	statsEvery time.Duration
	recEvery   time.Duration
	refresh    chan struct{}

	mu       sync.RWMutex
	date     string
	snapshot *attendance.Stats
	active   bool
}

func New(stats StatsSource, rec Recognizer, pub Publisher, opts Options) *Controller {
	if opts.StatsEvery <= 0 {
		opts.StatsEvery = 30 * time.Second
	}
	if opts.RecognitionEvery <= 0 {
		opts.RecognitionEvery = 3 * time.Second
	}
	return &Controller{
		stats:      stats,
		rec:        rec,
		pub:        pub,
		control:    opts.Control,
		tracker:    recognition.NewTracker(),
		statsEvery: opts.StatsEvery,
		recEvery:   opts.RecognitionEvery,
		refresh:    make(chan struct{}, 1),
	}
}

// Run polls stats and recognition until ctx ends. Each poller waits for its
// previous round trip before the next one, so neither overlaps itself.
func (c *Controller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.statsLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.recognitionLoop(ctx)
	}()
	slog.Info("dashboard controller started", "stats_every", c.statsEvery, "recognition_every", c.recEvery)
	wg.Wait()
	slog.Info("dashboard controller stopped")
}

func (c *Controller) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(c.statsEvery)
	defer ticker.Stop()

	_, _ = c.RefreshStats(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.refresh:
		}
		_, _ = c.RefreshStats(ctx)
	}
}

func (c *Controller) recognitionLoop(ctx context.Context) {
	ticker := time.NewTicker(c.recEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.PollRecognition(ctx)
		}
	}
}

// Refresh asks the stats poller for an immediate refresh, locally and on the
// controller behind Control.
func (c *Controller) Refresh() {
	c.requestRefresh()
	c.sendControl(context.Background(), ControlRefresh, nil)
}

func (c *Controller) requestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Date is the selected date, today when none is selected.
func (c *Controller) Date() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.date != "" {
		return c.date
	}
	return c.stats.Today()
}

// SetDate selects the date shown on the dashboard and refreshes its stats.
// An empty date follows today.
func (c *Controller) SetDate(ctx context.Context, date string) error {
	if date != "" {
		if _, err := attendance.ParseDate(date); err != nil {
			return err
		}
	}
	c.setDate(date)
	c.sendControl(ctx, ControlDateSelected, map[string]string{"date": date})
	return nil
}

func (c *Controller) setDate(date string) {
	c.mu.Lock()
	c.date = date
	c.snapshot = nil
	c.mu.Unlock()
	c.requestRefresh()
}

// Snapshot returns the latest stats, if any were fetched for the selected date.
func (c *Controller) Snapshot() (attendance.Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return attendance.Stats{}, false
	}
	return *c.snapshot, true
}

// RefreshStats recomputes stats for the selected date. On failure the
// previous snapshot is kept.
func (c *Controller) RefreshStats(ctx context.Context) (attendance.Stats, error) {
	date := c.Date()
	stats, err := c.stats.DailyStats(ctx, date)
	if err != nil {
		observability.Polls.WithLabelValues("stats", "error").Inc()
		slog.Error("stats refresh failed", "date", date, "error", err)
		return attendance.Stats{}, err
	}
	observability.Polls.WithLabelValues("stats", "ok").Inc()

	// the date may have changed while the query was in flight
	c.keepSnapshot(stats)
	c.publish(ctx, queue.TypeStats, stats)
	return stats, nil
}

// keepSnapshot stores stats when they belong to the selected date.
func (c *Controller) keepSnapshot(stats attendance.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.date
	if current == "" {
		current = c.stats.Today()
	}
	if current == stats.Date {
		c.snapshot = &stats
	}
}

// PollRecognition reads the service's current slot and publishes a
// notification when a new person was recognized.
func (c *Controller) PollRecognition(ctx context.Context) (*recognition.Notification, error) {
	r, err := c.rec.Current(ctx)
	if err != nil {
		observability.Polls.WithLabelValues("recognition", "error").Inc()
		slog.Debug("recognition poll failed", "error", err)
		return nil, err
	}
	observability.Polls.WithLabelValues("recognition", "ok").Inc()

	n, ok := c.tracker.Observe(*r)
	if !ok {
		return nil, nil
	}
	slog.Info("student recognized", "name", n.Name, "outcome", n.Outcome)
	c.publish(ctx, queue.TypeRecognition, n)
	if n.Outcome == recognition.OutcomeMarked {
		c.requestRefresh()
	}
	return n, nil
}

// Recognition is the displayed recognition state.
func (c *Controller) Recognition() recognition.Display {
	return c.tracker.Display()
}

// Active reports the recognition state last confirmed by the service.
func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// ToggleRecognition flips the service on or off. The local flag follows the
// state the service reports and is left alone on failure.
func (c *Controller) ToggleRecognition(ctx context.Context) (*recognition.ToggleResult, error) {
	res, err := c.rec.Toggle(ctx)
	if err != nil {
		slog.Error("toggle recognition failed", "error", err)
		return nil, err
	}

	c.mu.Lock()
	c.active = res.Active
	c.mu.Unlock()

	slog.Info("recognition toggled", "active", res.Active)
	c.publish(ctx, queue.TypeRecognitionToggled, res)
	return res, nil
}

// ResetRecognition clears the service slot and shows "ready for next"
// whatever the service answered. The service error is returned for logging.
func (c *Controller) ResetRecognition(ctx context.Context) error {
	err := c.tracker.Reset(ctx, c.rec)
	if err != nil {
		slog.Warn("recognition reset failed on service", "error", err)
	}
	c.publish(ctx, queue.TypeRecognitionReset, c.tracker.Display())
	c.sendControl(ctx, ControlReset, nil)
	return err
}

// Apply handles a control message from another process.
func (c *Controller) Apply(msg queue.Message) {
	switch msg.Type {
	case ControlReset:
		c.tracker.Clear()
	case ControlRefresh:
		c.requestRefresh()
	case ControlDateSelected:
		var body struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			slog.Warn("bad date control message", "error", err)
			return
		}
		if body.Date != "" {
			if _, err := attendance.ParseDate(body.Date); err != nil {
				slog.Warn("bad date control message", "error", err)
				return
			}
		}
		c.setDate(body.Date)
	}
}

// Listen applies control messages until the channel closes.
func (c *Controller) Listen(ctx context.Context, messages <-chan queue.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.Apply(msg)
		}
	}
}

// Mirror applies a notification published by a controller running in another
// process, so this one reports the same stats and recognition state.
func (c *Controller) Mirror(msg queue.Message) {
	var err error
	switch msg.Type {
	case queue.TypeStats:
		var stats attendance.Stats
		if err = json.Unmarshal(msg.Body, &stats); err == nil {
			c.keepSnapshot(stats)
		}
	case queue.TypeRecognition:
		var n recognition.Notification
		if err = json.Unmarshal(msg.Body, &n); err == nil {
			c.tracker.Show(n.Display())
		}
	case queue.TypeRecognitionReset:
		var d recognition.Display
		if err = json.Unmarshal(msg.Body, &d); err == nil {
			c.tracker.Show(d)
		}
	case queue.TypeRecognitionToggled:
		var res recognition.ToggleResult
		if err = json.Unmarshal(msg.Body, &res); err == nil {
			c.mu.Lock()
			c.active = res.Active
			c.mu.Unlock()
		}
	}
	if err != nil {
		slog.Warn("bad notification", "type", msg.Type, "error", err)
	}
}

// Follow mirrors every message from in and passes it on, until in closes or
// ctx ends.
func (c *Controller) Follow(ctx context.Context, in <-chan queue.Message) <-chan queue.Message {
	out := make(chan queue.Message, cap(in))
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				c.Mirror(msg)
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (c *Controller) publish(ctx context.Context, typ string, v any) {
	msg, err := queue.NewMessage(typ, v)
	if err != nil {
		slog.Error("encode notification failed", "type", typ, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.pub.Publish(ctx, msg); err != nil {
		slog.Warn("publish notification failed", "type", typ, "error", err)
		return
	}
	observability.Notifications.WithLabelValues(typ).Inc()
}

func (c *Controller) sendControl(ctx context.Context, typ string, v any) {
	if c.control == nil {
		return
	}
	msg, err := queue.NewMessage(typ, v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.control.Publish(ctx, msg); err != nil {
		slog.Warn("publish control message failed", "type", typ, "error", err)
	}
}
