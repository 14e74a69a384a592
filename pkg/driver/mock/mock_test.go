package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

func TestFramesAdvanceAndStick(t *testing.T) {
	ctx := context.Background()
	loading := uitree.New(uitree.TypeApplication, "loading")
	loaded := uitree.New(uitree.TypeApplication, "loaded")
	d := New(Config{Home: "home", Screens: map[string]*Screen{"home": {Frames: []*uitree.Element{loading, loaded}}}})
	require.NoError(t, d.Launch(ctx))

	for _, want := range []string{"loading", "loaded", "loaded"} {
		root, err := d.Source(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, root.Label)
	}
	assert.Equal(t, 3, d.SourceCalls)
}

func TestTapNavigates(t *testing.T) {
	ctx := context.Background()
	d := New(Config{Home: "home", Taps: map[string]string{Key("home", "Go"): "next"}})
	require.NoError(t, d.Launch(ctx))

	require.NoError(t, d.Tap(ctx, uitree.New(uitree.TypeButton, "Stay")))
	assert.Equal(t, "home", d.Current())
	require.NoError(t, d.Tap(ctx, uitree.New(uitree.TypeButton, "Go")))
	assert.Equal(t, "next", d.Current())
	assert.Equal(t, []string{"Stay", "Go"}, d.Tapped)
}

func TestAlertBlocksInteraction(t *testing.T) {
	ctx := context.Background()
	d := New(Config{Home: "home", Alerts: []core.Alert{{Text: "Photos", Buttons: []string{"Allow"}}}})
	require.NoError(t, d.Launch(ctx))

	root, err := d.Source(ctx)
	require.NoError(t, err)
	assert.True(t, root.Exists(uitree.Button("Allow")))
	assert.ErrorIs(t, d.Tap(ctx, uitree.New(uitree.TypeButton, "x")), ErrAlertBlocking)
	assert.ErrorIs(t, d.SwipeRight(ctx), ErrAlertBlocking)

	assert.Error(t, d.TapAlertButton(ctx, "OK"))
	require.NoError(t, d.TapAlertButton(ctx, "Allow"))
	alert, err := d.Alert(ctx)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, []string{"Allow"}, d.AlertTaps)
}

func TestSourceDelayHonorsContext(t *testing.T) {
	d := New(Config{Home: "home", SourceDelay: time.Minute})
	require.NoError(t, d.Launch(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Source(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
