package http

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orris-inc/checkout/internal/domain/challenge"
	"github.com/orris-inc/checkout/internal/infrastructure/cache"
	"github.com/orris-inc/checkout/internal/infrastructure/config"
	"github.com/orris-inc/checkout/internal/infrastructure/database"
	"github.com/orris-inc/checkout/internal/infrastructure/fingerprint"
	"github.com/orris-inc/checkout/internal/infrastructure/migration"
	"github.com/orris-inc/checkout/internal/infrastructure/page"
	"github.com/orris-inc/checkout/internal/infrastructure/repository"
	"github.com/orris-inc/checkout/internal/infrastructure/scheduler"
	"github.com/orris-inc/checkout/internal/infrastructure/telemetry"
	"github.com/orris-inc/checkout/internal/interfaces/http/middleware"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/sdk/checkout"
)

// Challenge slot backends.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageDatabase = "database"
)

// redisKeyPrefix namespaces every key the service writes to Redis.
const redisKeyPrefix = "checkout:"

// Container builds the shopper sessions and their infrastructure from config
// and owns their lifecycle. Shutdown releases everything NewContainer opened.
type Container struct {
	cfg *config.Config
	env string
	log logger.Interface

	db    *gorm.DB
	redis *redis.Client

	scheduler *scheduler.SchedulerManager

	reporter    *telemetry.HTTPReporter
	sessions    *SessionPool
	rateLimiter *middleware.RateLimiter
	router      *Router
}

// NewContainer wires the service. env selects the migration strategy when the
// database is in use.
func NewContainer(cfg *config.Config, env string, log logger.Interface) (*Container, error) {
	c := &Container{
		cfg: cfg,
		env: env,
		log: log,
	}

	storage, err := c.initChallengeStorage()
	if err != nil {
		c.closeInfrastructure()
		return nil, err
	}

	if err := c.initSessions(storage); err != nil {
		_ = c.Shutdown(context.Background())
		return nil, err
	}

	if cfg.Server.RateLimit > 0 {
		client, err := c.redisClient()
		if err != nil {
			_ = c.Shutdown(context.Background())
			return nil, err
		}
		c.rateLimiter = middleware.NewRateLimiter(client, cfg.Server.RateLimit, cfg.Server.RateLimitWindow, log)
	}

	c.router = NewRouter(c.sessions, c.rateLimiter, log)
	c.router.SetupRoutes(cfg)

	return c, nil
}

func (c *Container) initChallengeStorage() (challenge.Storage, error) {
	switch strings.ToLower(c.cfg.Challenge.Storage) {
	case "", StorageMemory:
		return cache.NewMemoryStorage(), nil
	case StorageRedis:
		client, err := c.redisClient()
		if err != nil {
			return nil, err
		}
		return cache.NewRedisStorage(client, redisKeyPrefix), nil
	case StorageDatabase:
		db, err := c.database()
		if err != nil {
			return nil, err
		}
		storage := repository.NewKVStorage(db)
		if c.cfg.Challenge.PurgeInterval > 0 {
			if err := c.schedule("challenge-purge", storage, c.cfg.Challenge.PurgeInterval); err != nil {
				return nil, err
			}
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown challenge storage %q", c.cfg.Challenge.Storage)
	}
}

// initSessions builds the options every shopper session shares and checks
// them by opening the command line session.
func (c *Container) initSessions(storage challenge.Storage) error {
	cfg := c.cfg

	opts := []checkout.Option{
		checkout.WithStorage(storage),
		checkout.WithLogger(c.log),
		checkout.WithPollInterval(cfg.Vault.PollInterval),
		checkout.WithVaultTimeout(cfg.Vault.Timeout),
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.URL != "" {
		c.reporter = telemetry.NewHTTPReporter(
			cfg.Telemetry.URL,
			cfg.Telemetry.Token,
			c.log.Named("telemetry"),
			telemetry.WithTimeout(cfg.Telemetry.Timeout),
			telemetry.WithDefaults(cfg.Telemetry.Platform, cfg.Checkout.Env, cfg.Telemetry.TenantID),
		)
		opts = append(opts, checkout.WithReporter(sharedReporter{c.reporter}))
	}

	if cfg.Fingerprint.URL != "" {
		opts = append(opts, checkout.WithFingerprinter(
			fingerprint.NewClient(cfg.Fingerprint.URL, fingerprint.WithTimeout(cfg.Fingerprint.Timeout))))
	}

	if cfg.Checkout.Journal {
		db, err := c.database()
		if err != nil {
			return err
		}
		opts = append(opts, checkout.WithJournal(repository.NewAttemptJournal(db)))
	}

	factory := func(sessionID string, renderer *page.Renderer) (*checkout.Client, error) {
		client := checkout.New(append(slices.Clip(opts), checkout.WithDocument(renderer))...)
		err := client.Configure(checkout.Config{
			APIURL:           cfg.Checkout.APIURL,
			PublicAPIKey:     cfg.Checkout.PublicAPIKey,
			Env:              cfg.Checkout.Env,
			Locale:           cfg.Checkout.Locale,
			Timeout:          cfg.Checkout.Timeout,
			MaxResumes:       cfg.Checkout.MaxResumes,
			ChallengeKey:     sessionChallengeKey(cfg.Challenge.Key, sessionID),
			ChallengeTTL:     cfg.Challenge.TTL,
			ChallengeTimeout: cfg.Challenge.FrameTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	callbackBase := strings.TrimRight(cfg.Server.BaseURL, "/") + ChallengeCallbackPath
	c.sessions = NewSessionPool(factory, callbackBase, cfg.Server.SessionIdleTimeout, c.log)

	if _, _, err := c.sessions.Session(CLISessionID); err != nil {
		return err
	}

	if cfg.Server.SessionIdleTimeout > 0 && cfg.Server.SessionSweepInterval > 0 {
		return c.schedule("session-sweep", c.sessions, cfg.Server.SessionSweepInterval)
	}
	return nil
}

// sessionChallengeKey gives every shopper session its own challenge slot.
func sessionChallengeKey(base, sessionID string) string {
	if base == "" {
		base = challenge.DefaultKey
	}
	return base + ":" + sessionID
}

// sharedReporter hides Close so a closing session leaves the reporter the
// container owns running.
type sharedReporter struct {
	telemetry.Reporter
}

// redisClient connects lazily so Redis is only required when something uses it.
func (c *Container) redisClient() (*redis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.GetAddr(),
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.log.Infow("redis connection established", "addr", c.cfg.Redis.GetAddr())
	c.redis = client
	return client, nil
}

// database opens and migrates the SQL store on first use.
func (c *Container) database() (*gorm.DB, error) {
	if c.db != nil {
		return c.db, nil
	}

	if err := database.Init(&c.cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := database.Get()

	manager := migration.NewManager(c.env, c.cfg.Database.Driver, c.log)
	if err := manager.Migrate(db); err != nil {
		_ = database.Close()
		return nil, err
	}

	c.db = db
	return db, nil
}

// schedule runs purger every interval on the container scheduler, starting
// it on first use.
func (c *Container) schedule(name string, purger scheduler.Purger, interval time.Duration) error {
	if c.scheduler == nil {
		manager, err := scheduler.NewSchedulerManager(c.log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		c.scheduler = manager
	}
	if err := c.scheduler.RegisterPurgeJob(name, purger, interval); err != nil {
		return fmt.Errorf("failed to register %s job: %w", name, err)
	}
	c.scheduler.Start()
	return nil
}

// Session returns the client and page of the command line session.
func (c *Container) Session() (*checkout.Client, *page.Renderer, error) {
	return c.sessions.Session(CLISessionID)
}

// Sessions returns the shopper session pool.
func (c *Container) Sessions() *SessionPool {
	return c.sessions
}

// Router returns the HTTP router with every route registered.
func (c *Container) Router() *Router {
	return c.router
}

// Shutdown closes the shopper sessions, then the connections they used.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	// the sweep must not race the final close
	if c.scheduler != nil {
		if err := c.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		c.scheduler = nil
	}

	if c.sessions != nil {
		if err := c.sessions.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
	}

	if c.reporter != nil {
		if err := c.reporter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close telemetry reporter: %w", err))
		}
		c.reporter = nil
	}

	errs = append(errs, c.closeInfrastructure()...)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.log.Infow("container shut down")
	return nil
}

func (c *Container) closeInfrastructure() []error {
	var errs []error

	if c.scheduler != nil {
		if err := c.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		c.scheduler = nil
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.redis = nil
	}

	if c.db != nil {
		if err := database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.db = nil
	}

	return errs
}
