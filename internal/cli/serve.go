package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelgrid/internal/config"
	"github.com/matzehuels/labelgrid/internal/server"
	"github.com/matzehuels/labelgrid/pkg/cache"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/rtree"
	"github.com/matzehuels/labelgrid/pkg/session"
)

// newServeCmd creates the serve command that runs the HTTP service.
func newServeCmd() *cobra.Command {
	var (
		cfgPath string
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the label placement HTTP service",
		Long: `Serve starts the HTTP API. Clients create a session per viewport,
run full placements against it, and stream incremental feature events.
Configuration is read from an optional TOML file plus LABELGRID_* environment
variables; --addr overrides the listen address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger.SetLevel(parseLevel(cfg.Log.Level))

			resultCache, err := newResultCache(cmd, cfg.Cache)
			if err != nil {
				return err
			}
			defer func() { _ = resultCache.Close() }()

			manager := session.NewManager(session.Config{
				TTL:         cfg.Session.TTL.Duration,
				MaxSessions: cfg.Session.MaxSessions,
				Index: rtree.Config{
					MinEntries: cfg.Index.MinEntries,
					MaxEntries: cfg.Index.MaxEntries,
				},
				Generator: label.Config{
					Cap:                cfg.Placement.CandidateCap,
					PointGap:           cfg.Placement.PointGap,
					PolygonMaxFraction: cfg.Placement.PolygonMaxFraction,
				},
			}, logger)
			manager.StartJanitor(ctx, cfg.Session.JanitorInterval.Duration)

			server.RegisterMetricsHooks()
			return server.New(cfg, manager, resultCache, logger).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

// newResultCache builds the cache backend named by the config.
func newResultCache(cmd *cobra.Command, cfg config.CacheCfg) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return cache.NewNullCache(), nil
	case "file":
		return cache.NewFileCache(cfg.Dir)
	case "redis":
		return cache.NewRedisCache(cmd.Context(), cache.RedisConfig{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
