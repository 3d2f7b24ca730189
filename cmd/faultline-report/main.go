// Command faultline-report is a small operational tool around the faultline
// client: it reports a one-off error or records a deploy against the
// configured project, reading its settings from FAULTLINE_* environment
// variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/example/faultline"
	"github.com/example/faultline/internal/logger"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "faultline-report",
		Usage:   "Report errors and deploys to a faultline endpoint",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level (trace..error)"},
		},
		Commands: []*cli.Command{
			notifyCmd(),
			deployCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fail("run", err)
	}
}

func notifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "notify",
		Usage:     "Report an error message synchronously",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "param", Aliases: []string{"p"}, Usage: "Extra key=value parameter (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return errors.New("a message argument is required")
			}

			notifier, err := buildNotifier(c)
			if err != nil {
				return err
			}
			defer closeNotifier(notifier)

			params := faultline.Params{}
			for _, kv := range c.StringSlice("param") {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("malformed --param %q, expected key=value", kv)
				}
				params[key] = value
			}

			resp, err := notifier.NotifySync(strings.Join(c.Args().Slice(), " "), params)
			if err != nil {
				return fmt.Errorf("notice rejected: %w", err)
			}
			fmt.Printf("notice accepted: id=%s url=%s\n", resp.ID, resp.URL)
			return nil
		},
	}
}

func deployCmd() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Record a deploy against the configured project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "environment", Usage: "Deploy environment (defaults to the configured one)"},
			&cli.StringFlag{Name: "repository", Usage: "Repository URL"},
			&cli.StringFlag{Name: "revision", Usage: "Deployed revision"},
			&cli.StringFlag{Name: "release", Usage: "Release version"},
			&cli.StringFlag{Name: "user", Usage: "Deploying user"},
		},
		Action: func(c *cli.Context) error {
			notifier, err := buildNotifier(c)
			if err != nil {
				return err
			}
			defer closeNotifier(notifier)

			promise := notifier.CreateDeploy(&faultline.Deploy{
				Environment: c.String("environment"),
				Repository:  c.String("repository"),
				Revision:    c.String("revision"),
				Version:     c.String("release"),
				Username:    c.String("user"),
			})
			resp, err := promise.Await(context.Background())
			if err != nil {
				return fmt.Errorf("deploy rejected: %w", err)
			}
			fmt.Printf("deploy recorded: id=%s\n", resp.ID)
			return nil
		},
	}
}

func buildNotifier(c *cli.Context) (*faultline.Notifier, error) {
	cfg, err := faultline.LoadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Environment, c.String("log-level"))
	if err != nil {
		return nil, err
	}
	cfg.Logger = log.With().Str("service", "faultline-report").Logger()

	return faultline.New(cfg)
}

func closeNotifier(n *faultline.Notifier) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = n.Close(ctx)
}

func fail(stage string, err error) {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Fatal().Err(err).Str("stage", stage).Msg("faultline-report failed")
}
