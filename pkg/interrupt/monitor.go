// Package interrupt dismisses system dialogs that cover the app under test.
//
// Handlers are pure functions from an alert to the button that should be
// tapped. A Monitor holds the registered handlers and is dispatched by the
// scenario before each interaction, the way an XCUITest interruption monitor
// fires when an alert blocks the next query.
package interrupt

import (
	"context"
	"fmt"
	"sync"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
)

// Handler picks the button to tap for an alert. ok is false when the
// handler does not recognize the alert.
type Handler func(alert core.Alert) (button string, ok bool)

// AlertSource exposes the visible system alert.
type AlertSource interface {
	// Alert returns the visible alert, or nil when there is none.
	Alert(ctx context.Context) (*core.Alert, error)
	TapAlertButton(ctx context.Context, label string) error
}

type registration struct {
	description string
	handler     Handler
}

// Monitor dispatches visible alerts to registered handlers.
type Monitor struct {
	mu       sync.Mutex
	handlers []registration
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Register adds a handler. Registering the same description twice keeps
// the first handler and reports false.
func (m *Monitor) Register(description string, h Handler) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.handlers {
		if r.description == description {
			return false
		}
	}
	m.handlers = append(m.handlers, registration{description: description, handler: h})
	return true
}

// Len returns the number of registered handlers.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// Dispatch checks for a visible alert and lets handlers resolve it in
// registration order. It reports whether an alert was dismissed. A visible
// alert that no handler recognizes returns ErrUnhandledAlert and stays up.
func (m *Monitor) Dispatch(ctx context.Context, src AlertSource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	alert, err := src.Alert(ctx)
	if err != nil {
		return false, fmt.Errorf("read alert: %w", err)
	}
	if alert == nil {
		return false, nil
	}

	m.mu.Lock()
	handlers := append([]registration(nil), m.handlers...)
	m.mu.Unlock()

	for _, r := range handlers {
		button, ok := r.handler(*alert)
		if !ok {
			continue
		}
		if err := src.TapAlertButton(ctx, button); err != nil {
			return false, fmt.Errorf("%s: tap %q: %w", r.description, button, err)
		}
		logger.Info("interrupt: %s dismissed %q with %q", r.description, alert.Text, button)
		return true, nil
	}

	logger.Debug("interrupt: no handler for alert %q (buttons %v)", alert.Text, alert.Buttons)
	return false, core.ErrUnhandledAlert.WithDetails(map[string]interface{}{
		"text":    alert.Text,
		"buttons": alert.Buttons,
	})
}
