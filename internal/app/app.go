package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"recipebox/internal/api"
	"recipebox/internal/config"
	"recipebox/internal/handlers"
	"recipebox/internal/middleware"
	"recipebox/internal/repositories"
	"recipebox/internal/routes"
	"recipebox/internal/services"
	"recipebox/internal/utils"
)

const shutdownTimeout = 5 * time.Second

// Core is the app core without any screen binding: the API client, the
// session store and the services on top of them.
type Core struct {
	DB       *sql.DB
	Client   *api.Client
	Sessions repositories.SessionRepository
	Flows    services.VerificationService
	Auth     services.AuthService
	Resets   services.PasswordResetService
}

// Open wires the core from cfg and migrates the session store.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	db, err := repositories.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	sealer, err := sessionSealer(cfg.Session.Key, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	sessions := repositories.NewSessionRepository(db, cfg.Database.Driver, sealer)
	if err := sessions.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session store: %w", err)
	}
	attempts := repositories.NewAttemptRepository(db, cfg.Database.Driver)
	if err := attempts.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate attempt log: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	flows := services.NewVerificationService(client, services.VerificationOptions{
		CooldownSeconds: cfg.OTP.CooldownSeconds,
		Attempts:        attempts,
	}, logger)

	return &Core{
		DB:       db,
		Client:   client,
		Sessions: sessions,
		Flows:    flows,
		Auth:     services.NewAuthService(client, sessions, flows, logger),
		Resets:   services.NewPasswordResetService(client, flows, logger),
	}, nil
}

// Close discards open flows and closes the store.
func (c *Core) Close() error {
	c.Flows.Shutdown()
	return c.DB.Close()
}

func sessionSealer(key string, logger *zap.Logger) (*utils.Sealer, error) {
	if key == "" {
		// Sessions sealed with a throwaway key do not survive a restart.
		logger.Warn("session.key not set, using an ephemeral key")
		generated, err := utils.NewRandomKey(32)
		if err != nil {
			return nil, err
		}
		key = generated
	}
	return utils.NewSealer(key)
}

// NewRouter builds the screen host over core.
func NewRouter(core *Core, opts handlers.ScreenOptions, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	return routes.SetupRoutes(
		router,
		handlers.NewAuthHandler(core.Auth, logger),
		handlers.NewVerifyHandler(core.Flows, opts, logger),
		handlers.NewPasswordHandler(core.Resets),
		core.Auth,
		core.Flows,
	)
}

// RunOptions are the process-level knobs of Run.
type RunOptions struct {
	// ConfigPath, when set, is watched and log.level changes are applied
	// to Level without a restart.
	ConfigPath string
	Level      *zap.AtomicLevel
}

// Run serves the screen host until ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts RunOptions) error {
	core, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Warn("close core", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           NewRouter(core, handlers.ScreenOptions{AutoSubmit: cfg.OTP.AutoSubmit, CallTimeout: cfg.API.Timeout}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("screen host listening", zap.String("addr", srv.Addr), zap.String("api", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Open event streams end once their flows are discarded.
		core.Flows.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("screen host stopped")
		return nil
	})
	if opts.ConfigPath != "" && opts.Level != nil {
		g.Go(func() error {
			err := config.Watch(gctx, opts.ConfigPath, func(next *config.Config) {
				applyLogLevel(opts.Level, next.Log.Level, logger)
			}, func(err error) {
				logger.Warn("config reload failed", zap.Error(err))
			})
			if err != nil {
				logger.Warn("config not watched", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func applyLogLevel(level *zap.AtomicLevel, name string, logger *zap.Logger) {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		logger.Warn("config reload: bad log.level", zap.String("level", name))
		return
	}
	if level.Level() != lvl {
		level.SetLevel(lvl)
		logger.Info("log level changed", zap.Stringer("level", lvl))
	}
}
