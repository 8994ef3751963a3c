// Command tokenlift logs in to a configured website with a real browser,
// harvests every plausible session credential, and writes the best
// candidate into an external JSON config document.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/urfave/cli"

	"github.com/tokenlift/tokenlift/internal/app"
	chromebrowser "github.com/tokenlift/tokenlift/internal/browser"
	"github.com/tokenlift/tokenlift/internal/config"
	"github.com/tokenlift/tokenlift/internal/configsync"
	"github.com/tokenlift/tokenlift/internal/harvest"
	"github.com/tokenlift/tokenlift/internal/logging"
	"github.com/tokenlift/tokenlift/internal/store"
)

var version = "dev"

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "tokenlift"
	cliApp.Usage = "automate a website login and lift the session token"
	cliApp.Version = version
	cliApp.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "log in, extract all storage surfaces, identify and persist the session token",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config, c", Usage: "path to tool config file"},
				cli.BoolFlag{Name: "headful", Usage: "run the browser visibly (overrides config)"},
			},
			Action: runAction,
		},
		{
			Name:      "identify",
			Usage:     "run the session-token heuristic against a previously dumped snapshot",
			ArgsUsage: "<snapshot.json>",
			Action:    identifyAction,
		},
		{
			Name:  "history",
			Usage: "show recent harvest runs",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit, n", Value: 10, Usage: "number of runs to show"},
			},
			Action: historyAction,
		},
		{
			Name:      "open",
			Usage:     "open the config file or snapshot directory",
			ArgsUsage: "<config|snapshots>",
			Action:    openAction,
		},
		{
			Name:   "bot-test",
			Usage:  "open bot.sannysoft.com to audit the browser fingerprint",
			Action: botTestAction,
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tokenlift: %s\n", err.Error())
		os.Exit(1)
	}
}

// loadConfig loads the tool config, creating a default one on first run
// so the user has a file to fill in.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}

	if path == "" && os.IsNotExist(err) {
		cfg = config.Default()
		if saveErr := cfg.Save(); saveErr != nil {
			return nil, fmt.Errorf("could not create default config: %w", saveErr)
		}
		configPath, _ := config.ConfigPath()
		fmt.Fprintf(os.Stderr, "Created default config at %s - fill in [target] and run again\n", configPath)
		return cfg, nil
	}

	return nil, err
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("headful") {
		cfg.Target.Headless = false
	}

	log := logging.New(cfg.Log)

	runs, err := openStore()
	if err != nil {
		log.Warn().Err(err).Msg("Run history unavailable")
	} else {
		defer runs.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.New(cfg, log, runs).Run(ctx)
}

func identifyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: tokenlift identify <snapshot.json>")
	}

	snap, err := configsync.LoadSnapshot(c.Args().First())
	if err != nil {
		return err
	}

	candidate := harvest.NewIdentifier().Identify(snap)
	if candidate == nil {
		fmt.Println("No session token candidate found")
		return nil
	}

	fmt.Printf("%s: %s = %s\n", candidate.Source, candidate.Name, candidate.Value)
	return nil
}

func historyAction(c *cli.Context) error {
	runs, err := openStore()
	if err != nil {
		return err
	}
	defer runs.Close()

	recent, err := runs.RecentRuns(c.Int("limit"))
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	for _, r := range recent {
		line := fmt.Sprintf("%s  %-12s  %s", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.LoginURL)
		if r.CandidateName != "" {
			line += fmt.Sprintf("  (%s: %s)", r.CandidateSource, r.CandidateName)
		}
		fmt.Println(line)
	}
	return nil
}

func openAction(c *cli.Context) error {
	var path string
	var err error

	switch c.Args().First() {
	case "config":
		path, err = config.ConfigPath()
	case "snapshots":
		cfg, cfgErr := loadConfig("")
		if cfgErr != nil {
			return cfgErr
		}
		path = cfg.Output.SnapshotDir
	default:
		return fmt.Errorf("usage: tokenlift open <config|snapshots>")
	}
	if err != nil {
		return err
	}

	return browser.OpenFile(path)
}

// botTestAction opens a bot-detection test page with the same stealth
// options the harvester uses, so the fingerprint can be audited before
// pointing the tool at a login page that blocks automation.
func botTestAction(c *cli.Context) error {
	sess, err := chromebrowser.NewChromeSession(context.Background(), false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Navigate("https://bot.sannysoft.com"); err != nil {
		return err
	}
	if err := sess.WaitReady(); err != nil {
		return err
	}

	fmt.Println("Press Enter to close the browser...")
	fmt.Scanln()
	return nil
}

func openStore() (*store.Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return store.New(store.DefaultPath(dir))
}
