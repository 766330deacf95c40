package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/kv"
	"github.com/victornm/triviaquiz/internal/leaderboard"
	"github.com/victornm/triviaquiz/internal/quiz"
	"github.com/victornm/triviaquiz/internal/telemetry"
	"github.com/victornm/triviaquiz/internal/theme"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Log telemetry.LogConfig

	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Quiz struct {
		Duration time.Duration
		// BankFile is an optional JSON question bank replacing the built-in one.
		BankFile string
	}

	Store struct {
		// Driver is one of memory, sqlite, redis, postgres.
		Driver string

		SQLite struct {
			Path string
		}

		Redis struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Pubsub struct {
		Enabled bool
		Addrs   []string
		Pass    string
		Prefix  string
	}
}

// DefaultConfig is the configuration used when neither file, env nor flags say otherwise.
func DefaultConfig() Config {
	var c Config
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Quiz.Duration = quiz.DefaultDuration
	c.Store.Driver = DriverSQLite
	c.Store.SQLite.Path = "triviaquiz.db"
	c.Store.Redis.Addrs = []string{"localhost:6379"}
	c.Store.Redis.Prefix = "triviaquiz"
	c.Store.Postgres.Addr = "localhost:5432"
	c.Store.Postgres.User = "postgres"
	c.Store.Postgres.Name = "triviaquiz"
	c.Pubsub.Addrs = []string{"localhost:6379"}
	c.Pubsub.Prefix = "triviaquiz:pubsub"
	return c
}

// App is the quiz with its persistence, shared by the terminal and the network front ends.
type App struct {
	EventBus    *event.Bus
	Store       kv.Store
	Leaderboard *leaderboard.Service
	Theme       *theme.Service
	Quiz        *quiz.Engine
	Pubsub      redis.UniversalClient

	closers []func() error
}

func NewApp(ctx context.Context, c Config) (*App, error) {
	a := &App{EventBus: event.NewBus()}

	if err := a.init(ctx, c); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context, c Config) error {
	if err := a.initStore(ctx, c); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	if c.Pubsub.Enabled {
		r, err := connectRedis(ctx, c.Pubsub.Addrs, c.Pubsub.Pass)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
		a.Pubsub = r
		a.closers = append(a.closers, r.Close)
	}

	bank := quiz.DefaultBank()
	if c.Quiz.BankFile != "" {
		var err error
		if bank, err = quiz.LoadBank(c.Quiz.BankFile); err != nil {
			return err
		}
	}

	a.Leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: a.EventBus,
		Store:    a.Store,
		MaxScore: len(bank) * domain.PointsPerQuestion,
	})

	a.Theme = theme.NewService(theme.Config{
		EventBus: a.EventBus,
		Store:    a.Store,
	})
	slog.InfoContext(ctx, "app: theme loaded", "theme", a.Theme.Load(ctx))

	a.Quiz = quiz.NewEngine(quiz.Config{
		Bank:        bank,
		Duration:    c.Quiz.Duration,
		EventBus:    a.EventBus,
		Leaderboard: a.Leaderboard,
	})

	return nil
}

func (a *App) initStore(ctx context.Context, c Config) error {
	switch c.Store.Driver {
	case DriverMemory, "":
		a.Store = kv.NewMemory()

	case DriverSQLite:
		s, err := kv.NewSQLite(c.Store.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)

	case DriverRedis:
		r, err := connectRedis(ctx, c.Store.Redis.Addrs, c.Store.Redis.Pass)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.Store = kv.NewRedis(r, c.Store.Redis.Prefix)
		a.closers = append(a.closers, r.Close)

	case DriverPostgres:
		p := c.Store.Postgres
		db, err := connectPostgres(ctx, p.Addr, p.User, p.Pass, p.Name)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		s, err := kv.NewPostgres(ctx, db)
		if err != nil {
			return err
		}
		a.Store = s

	default:
		return fmt.Errorf("unknown driver %q", c.Store.Driver)
	}

	return nil
}

// Close stops the quiz countdown, waits for event handlers and releases connections.
func (a *App) Close() {
	if a.Quiz != nil {
		a.Quiz.Close()
	}
	a.EventBus.Stop()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("app: close failed", "error", err)
		}
	}
	a.closers = nil
}

func connectRedis(ctx context.Context, addrs []string, pass string) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

func connectPostgres(ctx context.Context, addr, user, pass, name string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
