package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage"
	"github.com/jsamuelsen11/stage-tracker/internal/app/templates"
	"github.com/jsamuelsen11/stage-tracker/internal/app/tracker"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
)

// opener opens the configured store.
type opener func(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*storage.Backend, error)

// cli holds state shared by every subcommand once the root has loaded the
// configuration.
type cli struct {
	open      opener
	profile   string
	configDir string
	logFormat string
	jsonOut   bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	cmd := &cobra.Command{
		Use:   "trackerctl",
		Short: "Operate a stage tracker store",
		Long: `trackerctl works directly against the store configured for a profile.

Examples:
  trackerctl migrate --profile prod
  trackerctl summary owner-42
  trackerctl template export 6f1c... -o onboarding.yaml
  trackerctl template import onboarding.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&c.profile, "profile", "p", os.Getenv("APP_PROFILE"),
		"config profile (default $APP_PROFILE)")
	cmd.PersistentFlags().StringVar(&c.configDir, "config-dir", "configs", "directory holding the profile YAML files")
	cmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "",
		"log format: text or json (default text on a terminal, json otherwise)")
	cmd.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "output as JSON")

	cmd.AddCommand(newMigrateCmd(c))
	cmd.AddCommand(newSummaryCmd(c))
	cmd.AddCommand(newTemplateCmd(c))
	return cmd
}

func (c *cli) load(cmd *cobra.Command) error {
	if c.profile == "" {
		return errors.New("a profile is required: pass --profile or set APP_PROFILE")
	}
	opts := []config.Option{config.WithConfigDir(c.configDir)}
	if overrides := flagOverrides(cmd); len(overrides) > 0 {
		opts = append(opts, config.WithOverrides(overrides))
	}
	cfg, err := config.Load(c.profile, opts...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	format := c.logFormat
	if format == "" {
		format = logging.FormatFor(os.Stderr)
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Log.Level, format, cmd.ErrOrStderr()).
		With(slog.String("profile", c.profile))
	return nil
}

// overrideFlags maps subcommand flags onto the config keys they replace.
var overrideFlags = map[string]string{
	"backend": "store.backend",
	"dsn":     "store.dsn",
}

// flagOverrides collects the override flags the user actually set on cmd.
func flagOverrides(cmd *cobra.Command) map[string]any {
	values := make(map[string]any)
	for name, key := range overrideFlags {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			values[key] = f.Value.String()
		}
	}
	return values
}

// session is an opened store with the services that run on it.
type session struct {
	backend   *storage.Backend
	trackers  *tracker.Service
	templates *templates.Manager
}

func (c *cli) session(ctx context.Context) (*session, error) {
	b, err := c.open(ctx, c.cfg, nil, c.logger)
	if err != nil {
		return nil, err
	}
	// A CLI run reads owners as they are; it never seeds them.
	trackers := tracker.NewService(b, b, c.logger,
		tracker.WithMaxConcurrency(c.cfg.Tracker.MaxConcurrency),
		tracker.WithSeedDefaults(false),
	)
	return &session{
		backend:   b,
		trackers:  trackers,
		templates: templates.NewManager(b, trackers, c.logger),
	}, nil
}

func (s *session) Close() error {
	s.trackers.Close()
	return s.backend.Close()
}
