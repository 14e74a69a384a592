package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

var errNotFound = errors.New("element did not appear")

// dispatchAlerts runs the interruption monitor once. Alerts nobody handles
// stay on screen and are logged once per alert text.
func (r *Runner) dispatchAlerts(ctx context.Context) {
	handled, err := r.monitor.Dispatch(ctx, r.dev)
	switch {
	case err == nil:
		if handled {
			r.lastUnhandled = ""
		}
	case errors.Is(err, core.ErrUnhandledAlert):
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) {
			text, _ := execErr.Details["text"].(string)
			if text != r.lastUnhandled {
				logger.Warn("snapshot: alert %q left on screen", text)
				r.lastUnhandled = text
			}
		}
	default:
		logger.Debug("snapshot: alert check failed: %v", err)
	}
}

// source reads the tree after giving the monitor a chance to clear alerts.
func (r *Runner) source(ctx context.Context) *uitree.Element {
	r.dispatchAlerts(ctx)
	root, err := r.dev.Source(ctx)
	if err != nil {
		logger.Debug("snapshot: source read failed: %v", err)
		return nil
	}
	return root
}

// waitFor polls until any query matches or timeout elapses, always checking
// at least once. It returns errNotFound on timeout and ctx.Err() when
// cancelled.
func (r *Runner) waitFor(ctx context.Context, timeout time.Duration, queries ...uitree.Query) (*uitree.Element, error) {
	return r.waitUntil(ctx, timeout, func(root *uitree.Element) *uitree.Element {
		for _, q := range queries {
			if el := root.Find(q); el != nil {
				return el
			}
		}
		return nil
	})
}

// waitForWithin is waitFor for an element inside a container, e.g. a title
// inside a navigation bar.
func (r *Runner) waitForWithin(ctx context.Context, timeout time.Duration, outer, inner uitree.Query) (*uitree.Element, error) {
	return r.waitUntil(ctx, timeout, func(root *uitree.Element) *uitree.Element {
		return root.FindWithin(outer, inner)
	})
}

func (r *Runner) waitUntil(ctx context.Context, timeout time.Duration, find func(*uitree.Element) *uitree.Element) (*uitree.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el := r.sample(ctx, deadline, find); el != nil {
			return el, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errNotFound
		}
		sleep(ctx, r.interval)
	}
}

// sample checks the screen once. The read is bounded by the time left until
// deadline, but never less than one poll interval.
func (r *Runner) sample(ctx context.Context, deadline time.Time, find func(*uitree.Element) *uitree.Element) *uitree.Element {
	remaining := time.Until(deadline)
	if remaining < r.interval {
		remaining = r.interval
	}
	ctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	root := r.source(ctx)
	if root == nil {
		return nil
	}
	return find(root)
}

// require waits like waitFor and converts a timeout into a Missing Element
// failure carrying msg.
func (r *Runner) require(ctx context.Context, timeout time.Duration, msg string, queries ...uitree.Query) (*uitree.Element, error) {
	el, err := r.waitFor(ctx, timeout, queries...)
	if errors.Is(err, errNotFound) {
		names := make([]string, len(queries))
		for i, q := range queries {
			names[i] = q.String()
		}
		return nil, core.ErrElementNotFound.WithMessage(msg).WithDetails(map[string]interface{}{
			"queries": strings.Join(names, " | "),
			"timeout": timeout.String(),
		})
	}
	return el, err
}

// exists checks once, without waiting.
func (r *Runner) exists(ctx context.Context, q uitree.Query) bool {
	root := r.source(ctx)
	return root != nil && root.Exists(q)
}

// tap taps el after the monitor has had a chance to clear alerts.
func (r *Runner) tap(ctx context.Context, el *uitree.Element) error {
	r.dispatchAlerts(ctx)
	return r.dev.Tap(ctx, el)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
