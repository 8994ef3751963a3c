// Package app orchestrates a single harvest run.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokenlift/tokenlift/internal/browser"
	"github.com/tokenlift/tokenlift/internal/config"
	"github.com/tokenlift/tokenlift/internal/configsync"
	"github.com/tokenlift/tokenlift/internal/harvest"
	"github.com/tokenlift/tokenlift/internal/store"
)

// App wires the harvest pipeline together.
type App struct {
	cfg  *config.Config
	log  zerolog.Logger
	runs *store.Store

	// newSession is swapped out in tests.
	newSession func(ctx context.Context, headless bool) (browser.Session, error)
}

// New creates an App. The runs store may be nil, in which case run
// history is not recorded.
func New(cfg *config.Config, log zerolog.Logger, runs *store.Store) *App {
	return &App{
		cfg:  cfg,
		log:  log,
		runs: runs,
		newSession: func(ctx context.Context, headless bool) (browser.Session, error) {
			return browser.NewChromeSession(ctx, headless)
		},
	}
}

// Run performs one full harvest: login, extract, identify, sync. Exactly
// one browser session is driven, released on every exit path. A run with
// no identified candidate is a normal outcome; the snapshot dump is left
// for manual review.
func (a *App) Run(ctx context.Context) error {
	// Credentials must be present before any browser is launched.
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	started := time.Now()
	run := store.Run{
		LoginURL:  a.cfg.Target.LoginURL,
		StartedAt: started,
	}

	err := a.run(ctx, &run)

	run.FinishedAt = time.Now()
	if err != nil {
		run.Status = store.StatusFailed
		run.Error = err.Error()
	}
	a.record(run)

	return err
}

func (a *App) run(ctx context.Context, run *store.Run) error {
	sess, err := a.newSession(ctx, a.cfg.Target.Headless)
	if err != nil {
		return err
	}
	defer sess.Close()

	extractor := harvest.NewExtractor(a.cfg, a.log)

	if err := extractor.Login(sess); err != nil {
		return err
	}

	snap, err := extractor.Extract(sess)
	if err != nil {
		return err
	}

	if a.cfg.Output.SnapshotDir != "" {
		path, err := configsync.DumpSnapshot(a.cfg.Output.SnapshotDir, snap)
		if err != nil {
			a.log.Warn().Err(err).Msg("Failed to dump snapshot")
		} else {
			run.SnapshotPath = path
			a.log.Info().Str("path", path).Msg("Snapshot saved")
		}
	}

	candidate := harvest.NewIdentifier().Identify(snap)
	if candidate == nil {
		run.Status = store.StatusNoCandidate
		a.log.Warn().
			Str("snapshot", run.SnapshotPath).
			Msg("No session token candidate found; inspect the snapshot manually")
		return nil
	}

	a.log.Info().
		Str("source", string(candidate.Source)).
		Str("name", candidate.Name).
		Msg("Identified session token candidate")

	if err := configsync.Update(a.cfg.Output.ConfigPath, a.cfg.Output.TokenKey, candidate.Value); err != nil {
		return err
	}

	run.Status = store.StatusOK
	run.CandidateSource = string(candidate.Source)
	run.CandidateName = candidate.Name
	run.ConfigPath = a.cfg.Output.ConfigPath

	a.log.Info().
		Str("key", a.cfg.Output.TokenKey).
		Str("path", a.cfg.Output.ConfigPath).
		Msg("Session token written to config")

	return nil
}

func (a *App) record(run store.Run) {
	if a.runs == nil {
		return
	}
	if _, err := a.runs.RecordRun(run); err != nil {
		a.log.Warn().Err(err).Msg("Failed to record run history")
	}
}
