package harvest

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlift/tokenlift/internal/browser"
	"github.com/tokenlift/tokenlift/internal/config"
)

// fakeSession implements browser.Session in memory and records the
// operations performed on it.
type fakeSession struct {
	steps []string

	cookies    []*network.Cookie
	cookiesErr error

	evalData map[string]map[string]string
	evalErr  map[string]error

	navigateErr    error
	waitVisibleErr map[string]error
	waitURLErr     error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		evalData:       map[string]map[string]string{},
		evalErr:        map[string]error{},
		waitVisibleErr: map[string]error{},
	}
}

func (f *fakeSession) record(format string, args ...any) {
	f.steps = append(f.steps, fmt.Sprintf(format, args...))
}

func (f *fakeSession) Navigate(url string) error {
	f.record("navigate %s", url)
	return f.navigateErr
}

func (f *fakeSession) WaitReady() error {
	f.record("waitReady")
	return nil
}

func (f *fakeSession) WaitVisible(selector string, timeout time.Duration) error {
	f.record("waitVisible %s", selector)
	return f.waitVisibleErr[selector]
}

func (f *fakeSession) Fill(selector, value string) error {
	f.record("fill %s=%s", selector, value)
	return nil
}

func (f *fakeSession) Click(selector string) error {
	f.record("click %s", selector)
	return nil
}

func (f *fakeSession) WaitURL(pattern string, timeout time.Duration) error {
	f.record("waitURL %s", pattern)
	return f.waitURLErr
}

func (f *fakeSession) Evaluate(script string, out any) error {
	surface := surfaceForScript(script)
	f.record("evaluate %s", surface)

	if err := f.evalErr[surface]; err != nil {
		return err
	}

	m, ok := out.(*map[string]string)
	if !ok {
		return fmt.Errorf("unexpected evaluate output type %T", out)
	}
	*m = f.evalData[surface]
	return nil
}

func surfaceForScript(script string) string {
	switch {
	case strings.Contains(script, "sessionStorage"):
		return "sessionStorage"
	case strings.Contains(script, "localStorage"):
		return "localStorage"
	case strings.Contains(script, "meta["):
		return "metaTags"
	default:
		return "scriptVariables"
	}
}

func (f *fakeSession) Cookies() ([]*network.Cookie, error) {
	f.record("cookies")
	return f.cookies, f.cookiesErr
}

func (f *fakeSession) Location() (string, error) { return "", nil }

func (f *fakeSession) Screenshot() ([]byte, error) {
	f.record("screenshot")
	return []byte{0x89, 0x50, 0x4e, 0x47}, nil
}

func (f *fakeSession) Close() {
	f.record("close")
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Target.LoginURL = "https://example.com/login"
	cfg.Target.Username = "alice"
	cfg.Target.Password = "hunter2"
	cfg.Wait.AfterLogin = "#dashboard"
	return cfg
}

func newTestExtractor(cfg *config.Config) *Extractor {
	e := NewExtractor(cfg, zerolog.Nop())
	e.settle = 0
	return e
}

func TestExtract_AllSurfaces(t *testing.T) {
	sess := newFakeSession()
	sess.cookies = []*network.Cookie{
		{Name: "sid", Value: "c1", Domain: ".example.com", Path: "/", Expires: 1893456000, HTTPOnly: true, Secure: true},
		{Name: "theme", Value: "dark", Domain: "example.com", Path: "/", Expires: -1},
	}
	sess.evalData["localStorage"] = map[string]string{"auth_token": "l1"}
	sess.evalData["sessionStorage"] = map[string]string{"csrf": "s1"}
	sess.evalData["metaTags"] = map[string]string{"csrf-token": "m1"}
	sess.evalData["scriptVariables"] = map[string]string{"authToken": "v1"}

	snap, err := newTestExtractor(testConfig()).Extract(sess)
	require.NoError(t, err)

	sid := snap.Cookies["sid"]
	assert.Equal(t, "c1", sid.Value)
	assert.Equal(t, ".example.com", sid.Domain)
	assert.True(t, sid.HTTPOnly)
	assert.True(t, sid.Secure)
	require.NotNil(t, sid.Expires)
	assert.Equal(t, time.Unix(1893456000, 0).UTC(), *sid.Expires)

	// Session cookies carry no expiry.
	assert.Nil(t, snap.Cookies["theme"].Expires)

	assert.Equal(t, map[string]string{"auth_token": "l1"}, snap.LocalStorage)
	assert.Equal(t, map[string]string{"csrf": "s1"}, snap.SessionStorage)
	assert.Equal(t, map[string]string{"csrf-token": "m1"}, snap.MetaTags)
	assert.Equal(t, map[string]string{"authToken": "v1"}, snap.ScriptVariables)
}

func TestExtract_SurfaceFailureDegradesToEmpty(t *testing.T) {
	sess := newFakeSession()
	sess.evalData["localStorage"] = map[string]string{"k": "v"}
	sess.evalErr["sessionStorage"] = errors.New("storage disabled by site policy")
	sess.evalErr["scriptVariables"] = errors.New("execution context destroyed")

	snap, err := newTestExtractor(testConfig()).Extract(sess)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"k": "v"}, snap.LocalStorage)
	require.NotNil(t, snap.SessionStorage)
	assert.Empty(t, snap.SessionStorage)
	require.NotNil(t, snap.ScriptVariables)
	assert.Empty(t, snap.ScriptVariables)
}

func TestExtract_NilSurfaceResultBecomesEmptyMap(t *testing.T) {
	sess := newFakeSession()

	snap, err := newTestExtractor(testConfig()).Extract(sess)
	require.NoError(t, err)

	assert.NotNil(t, snap.LocalStorage)
	assert.NotNil(t, snap.SessionStorage)
	assert.NotNil(t, snap.MetaTags)
	assert.NotNil(t, snap.ScriptVariables)
}

func TestExtract_CookieFailurePropagates(t *testing.T) {
	sess := newFakeSession()
	sess.cookiesErr = errors.New("browser gone")

	snap, err := newTestExtractor(testConfig()).Extract(sess)
	assert.Nil(t, snap)
	require.ErrorContains(t, err, "cookies")
}

func TestLogin_StepOrder(t *testing.T) {
	cfg := testConfig()
	sess := newFakeSession()

	require.NoError(t, newTestExtractor(cfg).Login(sess))

	assert.Equal(t, []string{
		"navigate https://example.com/login",
		"waitReady",
		"waitVisible " + cfg.Selectors.Username,
		"fill " + cfg.Selectors.Username + "=alice",
		"fill " + cfg.Selectors.Password + "=hunter2",
		"click " + cfg.Selectors.Submit,
		"waitVisible #dashboard",
	}, sess.steps)
}

func TestLogin_URLPatternWait(t *testing.T) {
	cfg := testConfig()
	cfg.Wait.AfterLogin = "https://example.com/dashboard"
	sess := newFakeSession()

	require.NoError(t, newTestExtractor(cfg).Login(sess))
	assert.Contains(t, sess.steps, "waitURL https://example.com/dashboard")
}

func TestLogin_SelectorTimeoutSurfacesNavigationError(t *testing.T) {
	cfg := testConfig()
	sess := newFakeSession()
	sess.waitVisibleErr[cfg.Selectors.Username] = errors.New("timeout")

	err := newTestExtractor(cfg).Login(sess)
	require.Error(t, err)

	var nerr *browser.NavigationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, cfg.Selectors.Username, nerr.Target)
	assert.Equal(t, 10*time.Second, nerr.Timeout)
}

func TestLogin_NavigateFailureSurfacesNavigationError(t *testing.T) {
	cfg := testConfig()
	sess := newFakeSession()
	sess.navigateErr = errors.New("dns failure")

	var nerr *browser.NavigationError
	require.ErrorAs(t, newTestExtractor(cfg).Login(sess), &nerr)
	assert.Equal(t, cfg.Target.LoginURL, nerr.Target)
}

func TestLogin_HeadlessTakesNoScreenshots(t *testing.T) {
	cfg := testConfig()
	cfg.Target.Headless = true
	sess := newFakeSession()

	require.NoError(t, newTestExtractor(cfg).Login(sess))
	assert.NotContains(t, sess.steps, "screenshot")
}

func TestLogin_HeadfulScreenshotsOnFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Target.Headless = false
	cfg.Output.SnapshotDir = t.TempDir()
	sess := newFakeSession()
	sess.waitVisibleErr[cfg.Selectors.Username] = errors.New("timeout")

	require.Error(t, newTestExtractor(cfg).Login(sess))
	assert.Contains(t, sess.steps, "screenshot")
}
