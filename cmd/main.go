package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/victornm/triviaquiz/internal/cli"
	"github.com/victornm/triviaquiz/internal/config"
	"github.com/victornm/triviaquiz/internal/server"
	"github.com/victornm/triviaquiz/internal/telemetry"
)

const envPrefix = "TRIVIAQUIZ"

func main() {
	flags := pflag.NewFlagSet("triviaquiz", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: triviaquiz [play|serve] [flags]\n\n")
		flags.PrintDefaults()
	}

	file := flags.String("config", "", "config file, defaults to $CONFIG_PATH")
	flags.String("store.driver", "", "storage backend: memory, sqlite, redis or postgres")
	flags.String("store.sqlite.path", "", "SQLite database file")
	flags.String("quiz.bankfile", "", "JSON question bank replacing the built-in questions")
	flags.Duration("quiz.duration", 0, "time allowed for a quiz")
	flags.String("log.level", "", "log level: debug, info, warn or error")
	flags.Int32("http.port", 0, "HTTP port for serve")
	flags.Int32("grpc.port", 0, "gRPC port for serve")
	_ = flags.Parse(os.Args[1:])

	cmd := "play"
	if flags.NArg() > 0 {
		cmd = flags.Arg(0)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Load .env failed: %v", err)
	}

	c, err := loadConfig(*file, flags)
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	switch cmd {
	case "play":
		err = play(c)
	case "serve":
		err = serve(c)
	default:
		flags.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func loadConfig(file string, flags *pflag.FlagSet) (server.Config, error) {
	c := server.DefaultConfig()

	if file == "" {
		file = os.Getenv("CONFIG_PATH")
	}

	if err := config.Load(file, envPrefix, flags, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}

func play(c server.Config) error {
	// The terminal belongs to the quiz, so logs only go out when asked for.
	if c.Log.Level == "info" {
		c.Log.Level = "warn"
	}
	slog.SetDefault(telemetry.NewLogger(os.Stderr, c.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	a, err := server.NewApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	err = cli.Run(ctx, cli.Config{
		In:          os.Stdin,
		Out:         os.Stdout,
		EventBus:    a.EventBus,
		Quiz:        a.Quiz,
		Leaderboard: a.Leaderboard,
		Theme:       a.Theme,
		NoColor:     c.Log.NoColor,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serve(c server.Config) error {
	slog.SetDefault(telemetry.NewLogger(os.Stderr, c.Log))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(context.Background(), c)
	if err != nil {
		return err
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
	return nil
}
