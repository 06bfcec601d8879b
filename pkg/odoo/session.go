package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

type session struct {
	fingerprint string
	uid         int64
}

// Authenticate returns the backend user id for the configured credentials.
// The id is cached per configuration fingerprint until ForgetSession.
func (c *Client) Authenticate(ctx context.Context) (int64, error) {
	if !c.cfg.IsConfigured() {
		return 0, ErrNotConfigured
	}

	c.mu.Lock()
	if s := c.session; s != nil && s.fingerprint == c.fingerprint {
		c.mu.Unlock()
		return s.uid, nil
	}
	c.mu.Unlock()

	uid, err := c.authenticate(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.session = &session{fingerprint: c.fingerprint, uid: uid}
	c.mu.Unlock()
	return uid, nil
}

func (c *Client) authenticate(ctx context.Context) (int64, error) {
	res, err := c.Call(ctx, "common", "authenticate",
		c.cfg.DB, c.cfg.Username, c.cfg.Password, map[string]any{})
	if err != nil {
		return 0, err
	}

	// a rejected login comes back as false
	var uid int64
	if isFalsy(res) {
		return 0, ErrAuthenticationFailed
	}
	if err := json.Unmarshal(res, &uid); err != nil {
		return 0, &ProtocolError{Reason: fmt.Sprintf("authenticate result: %v", err)}
	}
	if uid <= 0 {
		return 0, ErrAuthenticationFailed
	}

	logger.Debug("odoo: authenticated", slog.Int64("uid", uid))
	return uid, nil
}

// ForgetSession drops the cached user id.
func (c *Client) ForgetSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// CheckConnection forces a fresh authentication round-trip.
func (c *Client) CheckConnection(ctx context.Context) error {
	c.ForgetSession()
	_, err := c.Authenticate(ctx)
	return err
}

// executeKW calls object.execute_kw and decodes the result into out. A remote
// error invalidates the cached session.
func (c *Client) executeKW(ctx context.Context, uid int64, model, method string, args []any, kwargs map[string]any, out any) error {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	res, err := c.Call(ctx, "object", "execute_kw",
		c.cfg.DB, uid, c.cfg.Password, model, method, args, kwargs)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			c.ForgetSession()
		}
		return err
	}

	if err := json.Unmarshal(res, out); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("%s.%s result: %v", model, method, err)}
	}
	return nil
}
