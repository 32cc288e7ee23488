package cli

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/places/internal/config"
	"github.com/fastygo/places/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/places/internal/infrastructure/postgres"
	"github.com/fastygo/places/internal/services"
	"github.com/fastygo/places/pkg/backend"
	"github.com/fastygo/places/pkg/backend/auth"
	"github.com/fastygo/places/repository"
	pgRepo "github.com/fastygo/places/repository/postgres"
	restRepo "github.com/fastygo/places/repository/rest"
)

// newMonitor watches the backend plus whichever optional stores are
// configured. Failing optional stores are logged and left out.
func (rt *runtime) newMonitor(ctx context.Context, client *backend.Client) *monitor.Monitor {
	probeURL := rt.cfg.Backend.ProbeURL
	if probeURL == "" {
		probeURL = backend.HealthURL(rt.cfg.Backend.URL)
	}
	cfg := monitor.Config{
		Backend:     auth.URLProbe{Transport: client.Transport, URL: probeURL, Timeout: rt.cfg.Backend.ProbeTimeout},
		Credentials: rt.bolt,
		Logger:      rt.logger.Named("monitor"),
	}
	if rt.cfg.Credentials.Store == config.StoreRedis && rt.opts.Store == nil {
		if r, err := rt.redisClient(ctx); err == nil {
			cfg.Redis = r
		}
	}
	if pool, err := rt.pool(ctx); err == nil {
		cfg.Postgres = pool
	} else if !errors.Is(err, pgInfra.ErrNoDatabase) {
		rt.logger.Warn("postgres unavailable", zap.Error(err))
	}
	return monitor.New(cfg)
}

// pool opens the pgx pool when DATABASE_URL is set.
func (rt *runtime) pool(ctx context.Context) (*pgxpool.Pool, error) {
	if rt.pg != nil {
		return rt.pg, nil
	}
	pool, err := pgInfra.NewPool(ctx, rt.cfg.Database, rt.logger.Named("postgres"))
	if err != nil {
		return nil, err
	}
	rt.manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, rt.logger)
		return nil
	})
	rt.pg = pool
	return pool, nil
}

// NewStatusCmd creates the "status" subcommand.
func NewStatusCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check backend reachability and local stores",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			client, err := rt.backend(ctx)
			if err != nil {
				return err
			}
			status := rt.newMonitor(ctx, client).Refresh(ctx)
			return render(cmd, status, func(w io.Writer) error {
				return table(w, []string{"DEPENDENCY", "UP"}, [][]string{
					{"backend", strconv.FormatBool(status.Backend)},
					{"postgresql", strconv.FormatBool(status.PostgreSQL)},
					{"redis", strconv.FormatBool(status.Redis)},
					{"credential store", strconv.FormatBool(status.CredentialStore) + " (" + strconv.Itoa(status.StoredKeys) + " keys)"},
				})
			})
		}),
	}
}

// NewReconcileCmd creates the "reconcile" subcommand.
func NewReconcileCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute place ratings from their reviews",
		Long: "Recompute every place's rating and review count from its reviews and fix the ones that drifted. " +
			"Reads PostgreSQL directly when DATABASE_URL is set, the REST API otherwise.",
		Args: cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			client, err := rt.backend(ctx)
			if err != nil {
				return err
			}

			var places repository.PlaceRepository = restRepo.NewPlaceRepository(client)
			var reviews repository.ReviewRepository = restRepo.NewReviewRepository(client)
			if rt.cfg.Database.URL != "" {
				pool, err := rt.pool(ctx)
				if err != nil {
					return err
				}
				places = pgRepo.NewPlaceRepository(pool)
				reviews = pgRepo.NewReviewRepository(pool)
			}

			mon := rt.newMonitor(ctx, client)
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = rt.cfg.Reconciler.Interval
			}
			reconciler, err := services.NewRatingReconciler(places, reviews, mon, rt.logger.Named("reconciler"),
				services.ReconcilerConfig{Interval: interval})
			if err != nil {
				return err
			}

			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				return rt.watch(cmd, mon, reconciler)
			}

			mon.Refresh(ctx)
			report, err := reconciler.Reconcile(ctx)
			if err != nil {
				return err
			}
			return render(cmd, report, message("checked %d, corrected %d, failed %d",
				report.Checked, report.Corrected, report.Failed))
		}),
	}
	cmd.Flags().Bool("watch", false, "Keep running on a schedule until interrupted")
	cmd.Flags().Duration("interval", 0, "Schedule interval (defaults to RECONCILE_INTERVAL)")
	return cmd
}

func (rt *runtime) watch(cmd *cobra.Command, mon *monitor.Monitor, reconciler *services.RatingReconciler) error {
	ctx, stop := rt.signalContext(cmd.Context())
	defer stop()

	mon.Start()
	rt.manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})
	reconciler.Start()
	rt.manager.Register("reconciler", func(ctx context.Context) error {
		reconciler.Stop(ctx)
		return nil
	})

	mon.Refresh(ctx)
	if _, err := reconciler.Reconcile(ctx); err != nil {
		rt.logger.Error("rating reconciliation failed", zap.Error(err))
	}
	<-ctx.Done()
	return nil
}

// NewMigrateCmd creates the "migrate" subcommand.
func NewMigrateCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <up|down>",
		Short: "Apply or roll back the PostgreSQL schema",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			var direction pgInfra.MigrationDirection
			switch args[0] {
			case string(pgInfra.MigrateUp):
				direction = pgInfra.MigrateUp
			case string(pgInfra.MigrateDown):
				direction = pgInfra.MigrateDown
			default:
				return exitError(exitUsage, "unknown direction %q: want up or down", args[0])
			}
			if path, _ := cmd.Flags().GetString("path"); path != "" {
				rt.cfg.Migrations.Path = path
			}

			start := time.Now()
			if err := pgInfra.RunMigrations(rt.cfg, direction, rt.logger.Named("migrate")); err != nil {
				if errors.Is(err, pgInfra.ErrNoDatabase) {
					return exitError(exitUsage, "%v", err)
				}
				return exitError(exitUnavailable, "migrate %s: %v", direction, err)
			}
			return render(cmd, map[string]string{"direction": string(direction), "took": time.Since(start).String()},
				message("Migrations %s applied", direction))
		}),
	}
	cmd.Flags().String("path", "", "Migrations directory (defaults to MIGRATIONS_PATH)")
	return cmd
}
