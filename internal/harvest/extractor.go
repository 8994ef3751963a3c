package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokenlift/tokenlift/internal/browser"
	"github.com/tokenlift/tokenlift/internal/config"
)

// Extractor drives a browser session through login and assembles a
// Snapshot of every credential-bearing storage surface. It performs no
// ranking; that belongs to Identifier.
type Extractor struct {
	cfg *config.Config
	log zerolog.Logger

	// settle is the extra wait after login when no explicit wait
	// condition is configured, giving page JS time to finish.
	settle time.Duration
}

// NewExtractor creates an extractor bound to the given configuration.
func NewExtractor(cfg *config.Config, log zerolog.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		log:    log,
		settle: 2 * time.Second,
	}
}

// Login navigates to the login page, submits the configured credentials
// and waits for the configured completion condition. The session is left
// on a fully loaded post-login page, ready for Extract. The caller owns
// the session and must close it whether or not Login succeeds.
func (e *Extractor) Login(sess browser.Session) error {
	target := e.cfg.Target
	sel := e.cfg.Selectors
	wait := e.cfg.Wait

	selectorTimeout := time.Duration(wait.SelectorTimeoutSec) * time.Second
	loginTimeout := time.Duration(wait.LoginTimeoutSec) * time.Second

	e.log.Info().Str("url", target.LoginURL).Msg("Navigating to login page")
	if err := sess.Navigate(target.LoginURL); err != nil {
		return e.loginFailed(sess, &browser.NavigationError{
			Step: "navigate to login page", Target: target.LoginURL, Err: err,
		})
	}
	if err := sess.WaitReady(); err != nil {
		return e.loginFailed(sess, &browser.NavigationError{
			Step: "wait for login page load", Target: target.LoginURL, Err: err,
		})
	}

	e.screenshot(sess, "before_login")

	e.log.Info().Msg("Filling login form")
	if err := sess.WaitVisible(sel.Username, selectorTimeout); err != nil {
		return e.loginFailed(sess, &browser.NavigationError{
			Step: "wait for login form", Target: sel.Username, Timeout: selectorTimeout, Err: err,
		})
	}
	if err := sess.Fill(sel.Username, target.Username); err != nil {
		return e.loginFailed(sess, &browser.NavigationError{
			Step: "fill username", Target: sel.Username, Err: err,
		})
	}
	if err := sess.Fill(sel.Password, target.Password); err != nil {
		return e.loginFailed(sess, &browser.NavigationError{
			Step: "fill password", Target: sel.Password, Err: err,
		})
	}
	if err := sess.Click(sel.Submit); err != nil {
		return e.loginFailed(sess, &browser.NavigationError{
			Step: "click submit", Target: sel.Submit, Err: err,
		})
	}

	e.log.Info().Msg("Waiting for login to complete")
	if err := e.waitForLogin(sess, wait, loginTimeout); err != nil {
		return e.loginFailed(sess, err)
	}

	e.screenshot(sess, "after_login")
	return nil
}

// waitForLogin applies the configured post-submit wait condition.
func (e *Extractor) waitForLogin(sess browser.Session, wait config.WaitConfig, timeout time.Duration) error {
	switch wait.Kind() {
	case config.WaitURLPattern:
		if err := sess.WaitURL(wait.AfterLogin, timeout); err != nil {
			return &browser.NavigationError{
				Step: "wait for post-login URL", Target: wait.AfterLogin, Timeout: timeout, Err: err,
			}
		}
	case config.WaitSelector:
		if err := sess.WaitVisible(wait.AfterLogin, timeout); err != nil {
			return &browser.NavigationError{
				Step: "wait for post-login element", Target: wait.AfterLogin, Timeout: timeout, Err: err,
			}
		}
	default:
		if err := sess.WaitReady(); err != nil {
			return &browser.NavigationError{Step: "wait for post-login load", Err: err}
		}
		time.Sleep(e.settle)
	}
	return nil
}

// Extract reads all four storage surfaces from a post-login session and
// assembles the snapshot. Cookie enumeration failure aborts the run;
// every other surface degrades to an empty map with the error logged.
// Extraction is read-only: nothing in the page is mutated.
func (e *Extractor) Extract(sess browser.Session) (*Snapshot, error) {
	snap := NewSnapshot()

	cookies, err := sess.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate cookies: %w", err)
	}
	for _, c := range cookies {
		snap.Cookies[c.Name] = normalizeCookie(c)
	}

	snap.LocalStorage = e.evaluateSurface(sess, "localStorage", localStorageScript)
	snap.SessionStorage = e.evaluateSurface(sess, "sessionStorage", sessionStorageScript)
	snap.MetaTags = e.evaluateSurface(sess, "metaTags", metaTagScript)
	snap.ScriptVariables = e.evaluateSurface(sess, "scriptVariables", scriptVariableScript)

	e.log.Info().
		Int("cookies", len(snap.Cookies)).
		Int("localStorage", len(snap.LocalStorage)).
		Int("sessionStorage", len(snap.SessionStorage)).
		Int("metaTags", len(snap.MetaTags)).
		Int("scriptVariables", len(snap.ScriptVariables)).
		Msg("Extraction complete")

	return snap, nil
}

// evaluateSurface runs an in-page script and collapses any failure to an
// empty map. Storage access restrictions are a normal degraded case, so
// the error is kept in the log rather than propagated.
func (e *Extractor) evaluateSurface(sess browser.Session, surface, script string) map[string]string {
	var out map[string]string
	if err := sess.Evaluate(script, &out); err != nil {
		e.log.Debug().Err(err).Str("surface", surface).Msg("Surface extraction failed, degrading to empty")
		return map[string]string{}
	}
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// loginFailed captures a diagnostic screenshot in headful mode before
// propagating the step error.
func (e *Extractor) loginFailed(sess browser.Session, err error) error {
	e.screenshot(sess, "error_screenshot")
	return err
}

// screenshot writes a diagnostic screenshot into the snapshot directory.
// Only taken in headful mode, and always best effort.
func (e *Extractor) screenshot(sess browser.Session, name string) {
	if e.cfg.Target.Headless || e.cfg.Output.SnapshotDir == "" {
		return
	}

	buf, err := sess.Screenshot()
	if err != nil {
		e.log.Warn().Err(err).Str("name", name).Msg("Failed to capture screenshot")
		return
	}

	if err := os.MkdirAll(e.cfg.Output.SnapshotDir, 0700); err != nil {
		e.log.Warn().Err(err).Msg("Failed to create snapshot directory")
		return
	}

	path := filepath.Join(e.cfg.Output.SnapshotDir, name+".png")
	if err := os.WriteFile(path, buf, 0600); err != nil {
		e.log.Warn().Err(err).Str("path", path).Msg("Failed to write screenshot")
		return
	}

	e.log.Debug().Str("path", path).Msg("Saved screenshot")
}
