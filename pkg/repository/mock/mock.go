package mock

import (
	"context"
	"sync"

	"github.com/garnizeh/simplymeet/pkg/models"
)

// Preferences is an in-memory repository.PreferencesRepo for tests.
type Preferences struct {
	mu      sync.Mutex
	Stored  *models.Employee
	Current models.Theme
	SaveErr error
	LoadErr error
	Saves   int
	Clears  int
}

func NewPreferences() *Preferences {
	return &Preferences{}
}

func (m *Preferences) SelectedEmployee(ctx context.Context) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Stored == nil {
		return nil, nil
	}
	e := *m.Stored
	return &e, nil
}

func (m *Preferences) SaveSelectedEmployee(ctx context.Context, e *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *e
	m.Stored = &cp
	m.Saves++
	return nil
}

func (m *Preferences) ClearSelectedEmployee(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stored = nil
	m.Clears++
	return nil
}

func (m *Preferences) Theme(ctx context.Context) (models.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Current == "" {
		return models.ThemeSystem, nil
	}
	return m.Current, nil
}

func (m *Preferences) SetTheme(ctx context.Context, t models.Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Current = t
	return nil
}
