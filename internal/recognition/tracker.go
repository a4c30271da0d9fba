package recognition

import (
	"context"
	"sync"
)

const (
	StatusWaiting = "Waiting for recognition..."
	StatusReady   = "Ready for next student..."
)

// Phase of the displayed recognition slot.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDetected
)

func (p Phase) String() string {
	if p == PhaseDetected {
		return "detected"
	}
	return "idle"
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	if string(b) == "detected" {
		*p = PhaseDetected
	} else {
		*p = PhaseIdle
	}
	return nil
}

// Display is what the console shows for the current recognition.
type Display struct {
	Phase    Phase   `json:"phase"`
	Name     string  `json:"name"`
	PhotoURL string  `json:"image_url"`
	Status   string  `json:"status"`
	Outcome  Outcome `json:"outcome"`
}

// Notification is emitted once per newly detected person.
type Notification struct {
	Name     string  `json:"name"`
	PhotoURL string  `json:"image_url"`
	Status   string  `json:"status"`
	Outcome  Outcome `json:"outcome"`
	Level    string  `json:"level,omitempty"`
}

// Resetter clears the service-side slot.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Tracker holds the local display state for the service's recognition slot.
// The service slot is never assumed consistent between polls; the tracker only
// reacts to what each poll returns.
type Tracker struct {
	mu      sync.Mutex
	display Display
}

// NewTracker starts idle and waiting.
func NewTracker() *Tracker {
	return &Tracker{display: Display{Phase: PhaseIdle, Status: StatusWaiting}}
}

// Display returns the current display state.
func (t *Tracker) Display() Display {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.display
}

// Observe applies a poll result. It returns a notification only when the
// polled name is non-empty and differs from the one displayed.
func (t *Tracker) Observe(r Recognized) (*Notification, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Name == "" || r.Name == t.display.Name {
		return nil, false
	}

	outcome := Classify(r)
	t.display = Display{
		Phase:    PhaseDetected,
		Name:     r.Name,
		PhotoURL: r.PhotoURL,
		Status:   r.Status,
		Outcome:  outcome,
	}
	return &Notification{
		Name:     r.Name,
		PhotoURL: r.PhotoURL,
		Status:   r.Status,
		Outcome:  outcome,
		Level:    outcome.Level(),
	}, true
}

// Reset asks the service to clear its slot, then returns the display to
// "ready for next" whatever the service said. The service error is returned
// for logging.
func (t *Tracker) Reset(ctx context.Context, svc Resetter) error {
	err := svc.Reset(ctx)
	t.Clear()
	return err
}

// Show replaces the display with state observed by another tracker.
func (t *Tracker) Show(d Display) {
	t.mu.Lock()
	t.display = d
	t.mu.Unlock()
}

// Display converts the notification into the display state it produced.
func (n Notification) Display() Display {
	return Display{
		Phase:    PhaseDetected,
		Name:     n.Name,
		PhotoURL: n.PhotoURL,
		Status:   n.Status,
		Outcome:  n.Outcome,
	}
}

// Clear returns the display to "ready for next" without calling the service.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.display = Display{Phase: PhaseIdle, Status: StatusReady}
	t.mu.Unlock()
}
