package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/comesee-snapshots/pkg/config"
	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/driver/mock"
	"github.com/devicelab-dev/comesee-snapshots/pkg/poller"
	"github.com/devicelab-dev/comesee-snapshots/pkg/report"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

const (
	deniedText = "사진 접근 권한이 필요합니다"
	emptyText  = "사진을 찾을 수 없습니다"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PollInterval = 2 * time.Millisecond
	cfg.Timeouts = config.Timeouts{
		Home:         50 * time.Millisecond,
		Button:       50 * time.Millisecond,
		PhotoAccess:  50 * time.Millisecond,
		LibraryState: 60 * time.Millisecond,
		Grid:         50 * time.Millisecond,
		PhotoTitle:   50 * time.Millisecond,
		BackButton:   10 * time.Millisecond,
		HomeReturn:   20 * time.Millisecond,
		GuestScreen:  50 * time.Millisecond,
		WDAReady:     50 * time.Millisecond,
	}
	return cfg
}

func app(children ...*uitree.Element) *uitree.Element {
	return uitree.New(uitree.TypeApplication, "ComeSee",
		uitree.New(uitree.TypeWindow, "", children...))
}

func navBar(title string, children ...*uitree.Element) *uitree.Element {
	return uitree.New(uitree.TypeNavigationBar, title, children...)
}

func homeScreen() *uitree.Element {
	return app(
		uitree.New(uitree.TypeButton, "Share My Photos"),
		uitree.New(uitree.TypeButton, "Join a Friend"),
	)
}

func photoGrid(cells int) *uitree.Element {
	g := uitree.New(uitree.TypeCollectionView, "")
	for i := 0; i < cells; i++ {
		g.Append(uitree.New(uitree.TypeCell, "photo-"+string(rune('a'+i))))
	}
	return g
}

func libraryScreen(content ...*uitree.Element) *uitree.Element {
	children := append([]*uitree.Element{
		navBar("ComeSee", uitree.New(uitree.TypeButton, "Home")),
		uitree.New(uitree.TypeButton, "권한/목록 새로고침"),
	}, content...)
	return app(children...)
}

// comeSee builds a mock app whose library screen walks the given frames.
func comeSee(library ...*uitree.Element) mock.Config {
	return mock.Config{
		Home: "home",
		Screens: map[string]*mock.Screen{
			"home":    {Frames: []*uitree.Element{homeScreen()}},
			"library": {Frames: library},
			"viewer": {Frames: []*uitree.Element{app(
				navBar("", uitree.New(uitree.TypeButton, "ComeSee"),
					uitree.New(uitree.TypeStaticText, "Photo 1 of 2")),
				uitree.New(uitree.TypeImage, "photo"),
			)}},
			"guest": {Frames: []*uitree.Element{app(
				navBar("", uitree.New(uitree.TypeButton, "Back")),
				uitree.New(uitree.TypeStaticText, "Join Session"),
			)}},
		},
		Taps: map[string]string{
			mock.Key("home", "Share My Photos"): "library",
			mock.Key("home", "Join a Friend"):   "guest",
			mock.Key("library", "photo-a"):      "viewer",
			mock.Key("library", "Home"):         "home",
			mock.Key("viewer", "ComeSee"):       "library",
			mock.Key("guest", "Back"):           "home",
		},
		DeviceName: "iPhone 15",
	}
}

func runScenario(t *testing.T, cfg *config.Config, mc mock.Config) (*Result, *mock.Device, string, error) {
	t.Helper()
	dir := t.TempDir()
	dev := mock.New(mc)
	res, err := New(dev, cfg, dir).Run(context.Background())
	require.NotNil(t, res)
	return res, dev, dir, err
}

func TestRunPopulatedLibraryOpensFirstPhoto(t *testing.T) {
	res, dev, dir, err := runScenario(t, testConfig(), comeSee(
		libraryScreen(uitree.New(uitree.TypeOther, "loading")),
		libraryScreen(photoGrid(2)),
	))
	require.NoError(t, err)

	assert.Equal(t, poller.StateGrid, res.Library.State)
	assert.False(t, res.Library.TimedOut)
	assert.True(t, res.OpenedPhoto)
	assert.True(t, res.ReturnedHome)
	assert.Equal(t, []string{"01-home.png", "02-photo-access.png", "03-photo-viewer.png"}, res.Snapshots)
	assert.Equal(t, []string{"Share My Photos", "photo-a", "ComeSee", "Home"}, dev.Tapped)
	assert.Equal(t, 1, dev.ScreenTaps)
	assert.Equal(t, "home", dev.Current())

	for _, name := range res.Snapshots {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRunWritesManifest(t *testing.T) {
	res, _, dir, err := runScenario(t, testConfig(), comeSee(libraryScreen(photoGrid(1))))
	require.NoError(t, err)

	m, err := report.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, m.RunID)
	assert.Equal(t, core.StatusPassed, m.Status)
	assert.Equal(t, "com.comesee.app", m.App.ID)
	assert.Equal(t, "grid", m.LibraryState)
	assert.Equal(t, res.Snapshots, m.Snapshots)
	require.NotEmpty(t, m.Steps)
	assert.Equal(t, "launch", m.Steps[0].Name)
	for _, s := range m.Steps {
		assert.Equal(t, core.StatusPassed, s.Status, s.Name)
	}
}

func TestRunLibraryStates(t *testing.T) {
	tests := []struct {
		name    string
		library *uitree.Element
		want    poller.ScreenState
	}{
		{
			name:    "empty",
			library: libraryScreen(uitree.New(uitree.TypeStaticText, emptyText)),
			want:    poller.StateEmpty,
		},
		{
			name:    "denied",
			library: libraryScreen(uitree.New(uitree.TypeStaticText, deniedText)),
			want:    poller.StateDenied,
		},
		{
			name: "denied wins over empty",
			library: libraryScreen(
				uitree.New(uitree.TypeStaticText, emptyText),
				uitree.New(uitree.TypeStaticText, deniedText),
			),
			want: poller.StateDenied,
		},
		{
			name:    "empty wins over populated grid",
			library: libraryScreen(uitree.New(uitree.TypeStaticText, emptyText), photoGrid(3)),
			want:    poller.StateEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, dev, _, err := runScenario(t, testConfig(), comeSee(tt.library))
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Library.State)
			assert.False(t, res.OpenedPhoto)
			assert.Equal(t, []string{"01-home.png", "02-photo-access.png", "03-photo-access-empty.png"}, res.Snapshots)
			assert.NotContains(t, dev.Tapped, "photo-a")
		})
	}
}

func TestRunTimeoutFallbacks(t *testing.T) {
	t.Run("grid container without items is a slow grid", func(t *testing.T) {
		res, _, _, err := runScenario(t, testConfig(), comeSee(libraryScreen(photoGrid(0))))
		require.NoError(t, err)
		assert.True(t, res.Library.TimedOut)
		assert.Equal(t, poller.StateGrid, res.Library.State)
		// No cell to open, so the empty-access shot is taken instead.
		assert.False(t, res.OpenedPhoto)
		assert.Contains(t, res.Snapshots, ShotAccessEmpty+".png")
	})

	t.Run("nothing on screen falls back to empty", func(t *testing.T) {
		res, _, _, err := runScenario(t, testConfig(), comeSee(libraryScreen()))
		require.NoError(t, err)
		assert.True(t, res.Library.TimedOut)
		assert.Equal(t, poller.StateEmpty, res.Library.State)
	})

	t.Run("strict fallback is indeterminate", func(t *testing.T) {
		cfg := testConfig()
		cfg.StrictFallback = true
		res, _, _, err := runScenario(t, cfg, comeSee(libraryScreen()))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrIndeterminateState)
		assert.Equal(t, poller.StateUnknown, res.Library.State)
		assert.Equal(t, []string{"01-home.png", "02-photo-access.png"}, res.Snapshots)
	})
}

func TestRunMissingHomeFails(t *testing.T) {
	mc := comeSee(libraryScreen(photoGrid(1)))
	mc.Screens["home"] = &mock.Screen{Frames: []*uitree.Element{app()}}

	res, dev, dir, err := runScenario(t, testConfig(), mc)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Contains(t, err.Error(), "Home screen did not appear")
	assert.Empty(t, res.Snapshots)
	assert.Empty(t, dev.Tapped)

	assert.FileExists(t, filepath.Join(dir, FailuresDir, "wait-for-home.png"))
	assert.FileExists(t, filepath.Join(dir, FailuresDir, "wait-for-home.xml"))

	m, err := report.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, m.Status)
	require.NotNil(t, m.Error)
	assert.Equal(t, "element_not_found", m.Error.Code)

	var names []string
	for _, s := range m.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"launch", "wait for home", "open share my photos", "wait for photo access screen",
		"poll library state", "capture library", "return home",
	}, names)
	assert.Equal(t, core.StatusFailed, m.Steps[1].Status)
	for _, s := range m.Steps[2:] {
		assert.Equal(t, core.StatusSkipped, s.Status, s.Name)
		assert.Equal(t, "not run: wait for home failed", s.Message)
	}
	assert.Equal(t, 5, m.Summary()["skipped"])
}

func TestRunStalledSourceFailsWithinTimeout(t *testing.T) {
	mc := comeSee(libraryScreen(photoGrid(1)))
	mc.SourceDelay = 5 * time.Second
	cfg := testConfig()
	cfg.Artifacts.UIHierarchy = false

	start := time.Now()
	_, _, _, err := runScenario(t, cfg, mc)

	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunMissingPhotoAccessScreenFails(t *testing.T) {
	mc := comeSee()
	mc.Screens["library"] = &mock.Screen{Frames: []*uitree.Element{app(
		uitree.New(uitree.TypeStaticText, "Loading"),
	)}}

	_, _, _, err := runScenario(t, testConfig(), mc)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Contains(t, err.Error(), "Photo access screen did not load")
}

func TestRunAcceptsPermissionAlert(t *testing.T) {
	mc := comeSee(libraryScreen(photoGrid(1)))
	mc.Alerts = []core.Alert{{
		Text:    "“ComeSee” Would Like to Access Your Photos",
		Buttons: []string{"Don’t Allow", "Limit Access…", "Allow Full Access"},
	}}

	res, dev, _, err := runScenario(t, testConfig(), mc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Allow Full Access"}, dev.AlertTaps)
	assert.Equal(t, poller.StateGrid, res.Library.State)
}

func TestRunDeniesAlertWithoutAllowButton(t *testing.T) {
	mc := comeSee(libraryScreen(uitree.New(uitree.TypeStaticText, deniedText)))
	mc.Alerts = []core.Alert{{Text: "Photos", Buttons: []string{"Don’t Allow", "Settings"}}}

	res, dev, _, err := runScenario(t, testConfig(), mc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Don’t Allow"}, dev.AlertTaps)
	assert.Equal(t, poller.StateDenied, res.Library.State)
}

func TestRunUnhandledAlertBlocksLookups(t *testing.T) {
	mc := comeSee(libraryScreen(photoGrid(1)))
	mc.Alerts = []core.Alert{{Text: "Update available", Buttons: []string{"Later"}}}

	_, dev, _, err := runScenario(t, testConfig(), mc)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Empty(t, dev.AlertTaps)
}

func TestRunGivesUpReturningHomeAfterThreeAttempts(t *testing.T) {
	mc := comeSee(app(
		navBar("ComeSee"),
		uitree.New(uitree.TypeStaticText, emptyText),
	))

	res, dev, dir, err := runScenario(t, testConfig(), mc)
	require.NoError(t, err)
	assert.False(t, res.ReturnedHome)
	assert.Equal(t, homeReturnAttempts, dev.Swipes)

	m, err := report.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPassed, m.Status)
	last := m.Steps[len(m.Steps)-1]
	assert.Equal(t, "return home", last.Name)
	assert.Equal(t, core.StatusWarned, last.Status)
	assert.Empty(t, last.Artifacts)
}

func TestRunReturnsHomeBySwipe(t *testing.T) {
	mc := comeSee(app(
		navBar("ComeSee"),
		uitree.New(uitree.TypeStaticText, emptyText),
	))
	mc.Back = map[string]string{"library": "home"}

	res, dev, _, err := runScenario(t, testConfig(), mc)
	require.NoError(t, err)
	assert.True(t, res.ReturnedHome)
	assert.Equal(t, 1, dev.Swipes)
}

func TestRunGuestSession(t *testing.T) {
	cfg := testConfig()
	cfg.GuestSession = true

	res, dev, dir, err := runScenario(t, cfg, comeSee(libraryScreen(photoGrid(1))))
	require.NoError(t, err)
	assert.Equal(t, []string{"01-home.png", "02-photo-access.png", "03-photo-viewer.png", "04-guest-session.png"}, res.Snapshots)
	assert.Equal(t, "home", dev.Current())
	assert.FileExists(t, filepath.Join(dir, "04-guest-session.png"))
}

func TestRunDeviceNamePrefix(t *testing.T) {
	cfg := testConfig()
	cfg.DeviceName = "iPhone 15"

	res, _, dir, err := runScenario(t, cfg, comeSee(libraryScreen(photoGrid(1))))
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15-01-home.png", res.Snapshots[0])

	data, err := os.ReadFile(filepath.Join(dir, "iPhone 15-01-home.png"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "home")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := mock.New(comeSee(libraryScreen(photoGrid(1))))
	_, err := New(dev, testConfig(), t.TempDir()).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonitorRegisteredOnce(t *testing.T) {
	dev := mock.New(comeSee(libraryScreen(photoGrid(1))))
	r := New(dev, testConfig(), t.TempDir())

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Monitor().Len())
}
