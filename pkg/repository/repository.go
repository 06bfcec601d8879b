package repository

import (
	"context"

	"github.com/garnizeh/simplymeet/pkg/models"
)

// Repository interfaces for locally persisted state. These are the public
// contracts consumers should depend on; concrete implementations live under
// internal/.

// IdentityRepo stores the employee chosen as the acting identity. A missing
// identity is reported as (nil, nil).
type IdentityRepo interface {
	SelectedEmployee(ctx context.Context) (*models.Employee, error)
	SaveSelectedEmployee(ctx context.Context, e *models.Employee) error
	ClearSelectedEmployee(ctx context.Context) error
}

// ThemeRepo stores the color scheme preference. An unset theme reads as
// models.ThemeSystem.
type ThemeRepo interface {
	Theme(ctx context.Context) (models.Theme, error)
	SetTheme(ctx context.Context, t models.Theme) error
}

// PreferencesRepo groups every local preference.
type PreferencesRepo interface {
	IdentityRepo
	ThemeRepo
}
