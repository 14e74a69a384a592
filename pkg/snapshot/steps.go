package snapshot

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/interrupt"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/poller"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

// homeReturnAttempts bounds the navigate-back loop used to recover home.
const homeReturnAttempts = 3

var errNotHome = errors.New("home screen not reached")

func (r *Runner) launch(ctx context.Context) (string, error) {
	r.monitor.Register(interrupt.PermissionMonitorName,
		interrupt.PermissionHandler(r.cfg.Alerts.Allow, r.cfg.Alerts.Deny))

	if err := r.dev.Launch(ctx); err != nil {
		return "", err
	}
	// An alert already on screen is only noticed on the next interaction.
	if err := r.dev.TapScreen(ctx); err != nil {
		logger.Debug("snapshot: tap screen: %v", err)
	}
	r.dispatchAlerts(ctx)
	return "", nil
}

func (r *Runner) waitForHome(ctx context.Context) (string, error) {
	if _, err := r.require(ctx, r.cfg.Timeouts.Home, "Home screen did not appear",
		uitree.Button(r.cfg.Labels.ShareButton)); err != nil {
		return "", err
	}
	return r.snapshot(ctx, ShotHome)
}

func (r *Runner) openShareMyPhotos(ctx context.Context) (string, error) {
	btn, err := r.require(ctx, r.cfg.Timeouts.Button, r.cfg.Labels.ShareButton+" button not found",
		uitree.Button(r.cfg.Labels.ShareButton))
	if err != nil {
		return "", err
	}
	return "", r.tap(ctx, btn)
}

func (r *Runner) waitForPhotoAccessScreen(ctx context.Context) (string, error) {
	_, err := r.require(ctx, r.cfg.Timeouts.PhotoAccess, "Photo access screen did not load",
		uitree.NavigationBar(r.cfg.Labels.NavigationTitle),
		uitree.Button(r.cfg.Labels.PermissionButton),
		uitree.Button(r.cfg.Labels.RefreshButton),
	)
	return "", err
}

func (r *Runner) pollLibraryState(ctx context.Context) (string, error) {
	res := r.poller.Wait(ctx, r.cfg.Timeouts.LibraryState)
	r.result.Library = res
	r.report.SetLibraryState(res.State.String())
	logger.Info("snapshot: library state %s (timed out: %v, polls: %d)", res.State, res.TimedOut, res.Polls)
	return r.snapshot(ctx, ShotPhotoAccess)
}

func (r *Runner) captureLibrary(ctx context.Context) (string, error) {
	switch r.result.Library.State {
	case poller.StateGrid:
		if !r.openFirstPhoto(ctx) {
			return r.snapshot(ctx, ShotAccessEmpty)
		}
		r.result.OpenedPhoto = true
		shot, err := r.snapshot(ctx, ShotPhotoViewer)
		if err != nil {
			return "", err
		}
		if err := r.navigateBack(ctx); err != nil {
			logger.Warn("snapshot: navigate back from photo: %v", err)
		}
		return shot, nil
	case poller.StateEmpty, poller.StateDenied:
		return r.snapshot(ctx, ShotAccessEmpty)
	default:
		return "", core.ErrIndeterminateState.WithMessage("Photo library did not reach a stable state")
	}
}

// openFirstPhoto taps the first grid cell and reports whether the photo
// viewer's title appeared.
func (r *Runner) openFirstPhoto(ctx context.Context) bool {
	grid, err := r.waitFor(ctx, r.cfg.Timeouts.Grid, uitree.OfType(uitree.TypeCollectionView))
	if err != nil {
		return false
	}
	cell := grid.Find(uitree.OfType(uitree.TypeCell))
	if cell == nil {
		return false
	}
	if err := r.tap(ctx, cell); err != nil {
		logger.Warn("snapshot: tap first photo: %v", err)
		return false
	}

	_, err = r.waitForWithin(ctx, r.cfg.Timeouts.PhotoTitle,
		uitree.OfType(uitree.TypeNavigationBar),
		uitree.Query{Type: uitree.TypeStaticText, LabelPrefix: r.cfg.Labels.PhotoTitlePrefix})
	return err == nil
}

// navigateBack taps the first hittable navigation-bar button, or swipes
// from the left edge when there is none.
func (r *Runner) navigateBack(ctx context.Context) error {
	if root := r.source(ctx); root != nil {
		for _, bar := range root.FindAll(uitree.OfType(uitree.TypeNavigationBar)) {
			for _, btn := range bar.FindAll(uitree.OfType(uitree.TypeButton)) {
				if btn.Hittable {
					return r.tap(ctx, btn)
				}
			}
		}
	}
	return r.dev.SwipeRight(ctx)
}

// returnHome walks back until the home button shows, trying at most
// homeReturnAttempts times.
func (r *Runner) returnHome(ctx context.Context) (string, error) {
	home := uitree.Button(r.cfg.Labels.ShareButton)
	if r.exists(ctx, home) {
		r.result.ReturnedHome = true
		return "", nil
	}

	attempt := 0
	op := func() error {
		attempt++
		back, err := r.waitForWithin(ctx, r.cfg.Timeouts.BackButton,
			uitree.OfType(uitree.TypeNavigationBar), uitree.OfType(uitree.TypeButton))
		switch {
		case err == nil:
			if err := r.tap(ctx, back); err != nil {
				logger.Debug("snapshot: tap back: %v", err)
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			if err := r.dev.SwipeRight(ctx); err != nil {
				logger.Debug("snapshot: swipe back: %v", err)
			}
		}
		if _, err := r.waitFor(ctx, r.cfg.Timeouts.HomeReturn, home); err != nil {
			logger.Debug("snapshot: home not visible after attempt %d", attempt)
			return errNotHome
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, homeReturnAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return "", core.ErrElementNotFound.WithMessage("could not navigate back to home").
			WithDetails(map[string]interface{}{"attempts": attempt})
	}
	r.result.ReturnedHome = true
	return "", nil
}

func (r *Runner) openGuestSession(ctx context.Context) (string, error) {
	btn, err := r.require(ctx, r.cfg.Timeouts.Button, r.cfg.Labels.JoinButton+" button not found",
		uitree.Button(r.cfg.Labels.JoinButton))
	if err != nil {
		return "", err
	}
	if err := r.tap(ctx, btn); err != nil {
		return "", err
	}
	if _, err := r.require(ctx, r.cfg.Timeouts.GuestScreen, "Guest session screen did not appear",
		uitree.StaticText(r.cfg.Labels.GuestTitle)); err != nil {
		return "", err
	}
	return r.snapshot(ctx, ShotGuest)
}
