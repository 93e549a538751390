// Package common holds shared dependency setup for the CLI commands:
// config/logger bootstrapping, database and Redis connections, and
// assembly of the extraction stack.
package common

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/socialgrab/internal/cache"
	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/cookiepool"
	"github.com/jonesrussell/socialgrab/internal/database"
	"github.com/jonesrussell/socialgrab/internal/fetch"
	"github.com/jonesrussell/socialgrab/internal/headers"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/orchestrator"
	"github.com/jonesrussell/socialgrab/internal/platforms"
	"github.com/jonesrussell/socialgrab/internal/urlpipe"
)

// CommandDeps holds the dependencies every command starts from.
type CommandDeps struct {
	Logger logger.Interface
	Config config.Interface
}

// NewCommandDeps loads configuration and creates the logger.
func NewCommandDeps() (*CommandDeps, error) {
	cfg := config.New()

	log, err := logger.New(cfg.GetLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &CommandDeps{Logger: log, Config: cfg}, nil
}

// OpenDatabase connects to Postgres using the configured settings.
func OpenDatabase(cfg config.Interface) (*sqlx.DB, error) {
	dbCfg := cfg.GetDatabaseConfig()
	return database.NewPostgresConnection(database.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.DBName,
		SSLMode:  dbCfg.SSLMode,
	})
}

// OpenRedis creates a Redis client and verifies connectivity.
func OpenRedis(ctx context.Context, cfg config.Interface) (*redis.Client, error) {
	redisCfg := cfg.GetRedisConfig()
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ExtractionStack is the assembled extraction flow plus the pieces
// commands need to manage alongside it.
type ExtractionStack struct {
	Orchestrator *orchestrator.Orchestrator
	Pool         *cookiepool.Pool
	Rotator      *headers.Rotator
	Cookies      *database.CookieRepository
	Profiles     *database.ProfileRepository
}

// BuildExtractionStack wires the URL pipeline, result cache, credential
// pool, header rotator and strategy registry into an orchestrator. db and
// redisClient may be nil: without a database there is no pool or rotator
// (guest-only extraction), without Redis there is no result cache.
func BuildExtractionStack(
	deps *CommandDeps,
	db *sqlx.DB,
	redisClient *redis.Client,
) (*ExtractionStack, error) {
	cfg, log := deps.Config, deps.Logger

	resolver := fetch.NewResolver(config.DefaultResolveTimeout, config.DefaultMaxRedirects)
	pipeline := urlpipe.New(resolver, log)
	registry := platforms.NewRegistry(cfg, log)

	stack := &ExtractionStack{}

	var resultCache orchestrator.ResultCache
	if redisClient != nil {
		resultCache = cache.NewResultCache(redisClient, cfg, log)
	}

	var pool orchestrator.CredentialPool
	var rotator orchestrator.ProfileProvider
	if db != nil {
		stack.Cookies = database.NewCookieRepository(db)
		stack.Profiles = database.NewProfileRepository(db)

		cipher, err := cookiepool.NewCipher(cfg.GetCookieKey())
		if err != nil {
			return nil, fmt.Errorf("create cookie cipher: %w", err)
		}

		stack.Pool = cookiepool.New(stack.Cookies, cipher, cfg.GetPoolConfig(), log)
		stack.Rotator = headers.NewRotator(stack.Profiles, cfg.GetRotatorConfig(), log)
		pool = stack.Pool
		rotator = stack.Rotator
	}

	stack.Orchestrator = orchestrator.New(pipeline, resultCache, pool, rotator, registry, log)
	return stack, nil
}
