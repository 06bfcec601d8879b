package agenda

import (
	"context"
	"errors"
	"fmt"

	"github.com/garnizeh/simplymeet/pkg/odoo"
)

var (
	// ErrNotSelectable rejects directory entries without a linked login.
	ErrNotSelectable = errors.New("agenda: employee has no linked user")
	// ErrStaleIdentity is returned for a load whose identity was replaced
	// while it was in flight. Its result is discarded.
	ErrStaleIdentity = errors.New("agenda: selected employee changed during load")
)

// UserMessage converts an error from this package or pkg/odoo into a short
// message fit for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		te *odoo.TransportError
		re *odoo.RemoteError
		pe *odoo.ProtocolError
	)
	switch {
	case errors.Is(err, odoo.ErrNotConfigured):
		return "Odoo is not configured. Set ODOO_URL, ODOO_DB, ODOO_USERNAME and ODOO_PASSWORD."
	case errors.Is(err, odoo.ErrTimeout):
		return "Timed out waiting for Odoo. Try again."
	case errors.Is(err, odoo.ErrAuthenticationFailed):
		return "Could not authenticate against Odoo."
	case errors.Is(err, ErrNotSelectable):
		return "This employee has no linked user and cannot be selected."
	case errors.Is(err, ErrStaleIdentity):
		return "The selected employee changed. Reload the agenda."
	case errors.Is(err, context.Canceled):
		return "The request was canceled."
	case errors.As(err, &re):
		return re.Message
	case errors.As(err, &te):
		if te.StatusCode == 0 {
			return "Could not reach Odoo."
		}
		return fmt.Sprintf("Odoo returned HTTP %d.", te.StatusCode)
	case errors.As(err, &pe):
		return "Empty or invalid response from Odoo."
	}
	return "Could not load data from Odoo."
}
