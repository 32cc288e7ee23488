package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fastygo/places/internal/config"
	"github.com/fastygo/places/internal/infrastructure/credstore"
	redisInfra "github.com/fastygo/places/internal/infrastructure/redis"
	"github.com/fastygo/places/internal/services/lifecycle"
	"github.com/fastygo/places/pkg/backend"
	"github.com/fastygo/places/pkg/backend/session"
	"github.com/fastygo/places/pkg/logger"
	redisRepo "github.com/fastygo/places/repository/redis"
	restRepo "github.com/fastygo/places/repository/rest"
	attractionUC "github.com/fastygo/places/usecase/attraction"
	authUC "github.com/fastygo/places/usecase/auth"
	placeUC "github.com/fastygo/places/usecase/place"
	profileUC "github.com/fastygo/places/usecase/profile"
	reviewUC "github.com/fastygo/places/usecase/review"
	themeUC "github.com/fastygo/places/usecase/theme"
)

const meterName = "github.com/fastygo/places"

// Options carries dependencies that replace the ones built from the
// environment. Zero values mean "build from config".
type Options struct {
	Config     *config.Config
	HTTPClient *fasthttp.Client
	Store      session.Store
}

// runtime is what one command invocation works with. Everything it opens is
// registered with the lifecycle manager and released by close.
type runtime struct {
	opts    Options
	cfg     *config.Config
	logger  *zap.Logger
	manager *lifecycle.Manager

	store  session.Store
	bolt   *credstore.Store
	redis  *redislib.Client
	pg     *pgxpool.Pool
	client *backend.Client

	auth        *authUC.UseCase
	profiles    *profileUC.UseCase
	places      *placeUC.UseCase
	reviews     *reviewUC.UseCase
	attractions *attractionUC.UseCase
	theme       *themeUC.UseCase
}

func newRuntime(cmd *cobra.Command, opts Options) (*runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")
		loaded, err := config.Load(envFiles...)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	return &runtime{
		opts:    opts,
		cfg:     cfg,
		logger:  zapLogger,
		manager: lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger),
	}, nil
}

// close runs the shutdown hooks of everything the command opened.
func (rt *runtime) close() {
	if err := rt.manager.Shutdown(context.Background()); err != nil {
		rt.logger.Error("graceful shutdown error", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// sessionStore opens the configured credential store once.
func (rt *runtime) sessionStore(ctx context.Context) (session.Store, error) {
	if rt.store != nil {
		return rt.store, nil
	}
	if rt.opts.Store != nil {
		rt.store = rt.opts.Store
		return rt.store, nil
	}

	switch rt.cfg.Credentials.Store {
	case config.StoreRedis:
		client, err := rt.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		rt.store = redisRepo.NewCredentialStore(client, rt.cfg.Credentials.Prefix, 0)
	case config.StoreMemory:
		rt.store = session.NewMemoryStore()
	default:
		store, err := credstore.Open(rt.cfg.Credentials.Path, rt.cfg.Credentials.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		rt.manager.RegisterCloser("credential_store", store)
		rt.bolt = store
		rt.store = store
	}
	return rt.store, nil
}

func (rt *runtime) redisClient(ctx context.Context) (*redislib.Client, error) {
	if rt.redis != nil {
		return rt.redis, nil
	}
	client, err := redisInfra.NewClient(ctx, rt.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rt.manager.RegisterCloser("redis", client)
	rt.redis = client
	return client, nil
}

// backend builds the client and the use cases on top of it, restoring the
// stored session.
func (rt *runtime) backend(ctx context.Context) (*backend.Client, error) {
	if rt.client != nil {
		return rt.client, nil
	}
	if err := rt.cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := rt.sessionStore(ctx)
	if err != nil {
		return nil, err
	}

	clientCfg := rt.cfg.ClientConfig()
	clientCfg.Store = store
	clientCfg.HTTPClient = rt.opts.HTTPClient
	clientCfg.Meter = otel.GetMeterProvider().Meter(meterName)
	clientCfg.Logger = rt.logger
	client, err := backend.New(clientCfg)
	if err != nil {
		return nil, err
	}
	if s := client.Sessions.Load(ctx); s != nil {
		rt.logger.Debug("session restored", zap.String("user_id", s.UserID()), zap.Time("expires_at", s.Expiry()))
	}

	places := restRepo.NewPlaceRepository(client)
	reviews := restRepo.NewReviewRepository(client)
	profiles := restRepo.NewProfileRepository(client)

	rt.client = client
	rt.auth = authUC.New(client.Auth, rt.logger.Named("auth"))
	rt.profiles = profileUC.New(profileUC.Config{
		Profiles: profiles,
		Auth:     client.Auth,
		Images:   client.Storage,
		Bucket:   rt.cfg.Backend.ProfileBucket,
		Logger:   rt.logger.Named("profile"),
	})
	rt.places = placeUC.New(placeUC.Config{
		Places: places,
		Auth:   client.Auth,
		Images: client.Storage,
		Bucket: rt.cfg.Backend.PlaceBucket,
		Logger: rt.logger.Named("place"),
	})
	rt.reviews = reviewUC.New(reviewUC.Config{
		Reviews:  reviews,
		Places:   places,
		Profiles: profiles,
		Auth:     client.Auth,
		Logger:   rt.logger.Named("review"),
	})
	rt.attractions = attractionUC.New(
		restRepo.NewAttractionRepository(client),
		restRepo.NewFavoriteRepository(client),
		client.Auth,
		rt.logger.Named("attraction"),
	)
	return client, nil
}

// themes works without a backend; the preference lives in the credential store.
func (rt *runtime) themes(ctx context.Context) (*themeUC.UseCase, error) {
	if rt.theme != nil {
		return rt.theme, nil
	}
	store, err := rt.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	rt.theme = themeUC.New(store, rt.logger.Named("theme"))
	return rt.theme, nil
}

// signalContext is canceled on SIGINT/SIGTERM for long-running commands.
func (rt *runtime) signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return rt.manager.Context(parent)
}

// withRuntime adapts a command body to cobra's RunE, giving it a runtime
// and mapping its error onto an exit code.
func withRuntime(opts Options, fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd, opts)
		if err != nil {
			return asExitError(err)
		}
		defer rt.close()
		return asExitError(fn(cmd, args, rt))
	}
}
