package reminders

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MemoryNotifier keeps notifications in memory. It serves tests and dry
// runs.
type MemoryNotifier struct {
	mu sync.Mutex

	supported       bool
	granted         bool
	grantOnAsk      bool
	nextID          int
	items           map[string]Notification
	channels        map[string]Channel
	permissionAsked int

	// FailSchedule, when set, is consulted before each Schedule call.
	FailSchedule func(Request) error
}

// NewMemoryNotifier returns a supported notifier with permission granted.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{
		supported:  true,
		granted:    true,
		grantOnAsk: true,
		items:      make(map[string]Notification),
		channels:   make(map[string]Channel),
	}
}

// SetSupported toggles platform support.
func (m *MemoryNotifier) SetSupported(v bool) {
	m.mu.Lock()
	m.supported = v
	m.mu.Unlock()
}

// SetPermission sets the current permission and what a request would yield.
func (m *MemoryNotifier) SetPermission(granted, grantOnAsk bool) {
	m.mu.Lock()
	m.granted = granted
	m.grantOnAsk = grantOnAsk
	m.mu.Unlock()
}

func (m *MemoryNotifier) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

func (m *MemoryNotifier) PermissionGranted(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted, nil
}

func (m *MemoryNotifier) RequestPermission(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissionAsked++
	m.granted = m.grantOnAsk
	return m.granted, nil
}

// PermissionRequests returns how many times permission was requested.
func (m *MemoryNotifier) PermissionRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permissionAsked
}

func (m *MemoryNotifier) EnsureChannel(ctx context.Context, ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
	return nil
}

// Channels returns the channels ensured so far.
func (m *MemoryNotifier) Channels() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out
}

// Scheduled returns the pending notifications ordered by trigger time.
func (m *MemoryNotifier) Scheduled(ctx context.Context) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, 0, len(m.items))
	for _, n := range m.items {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggerAt.Equal(out[j].TriggerAt) {
			return out[i].TriggerAt.Before(out[j].TriggerAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryNotifier) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MemoryNotifier) Schedule(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	fail := m.FailSchedule
	m.mu.Unlock()
	if fail != nil {
		if err := fail(req); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := "mem-" + strconv.Itoa(m.nextID)
	m.items[id] = Notification{ID: id, Request: req}
	return id, nil
}
