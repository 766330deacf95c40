package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/triviaquiz/internal/api"
	"github.com/victornm/triviaquiz/internal/telemetry"
)

type Server struct {
	c Config
	a *App

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

// Init wires the application and the HTTP and gRPC front ends.
func Init(ctx context.Context, c Config) (*Server, error) {
	a, err := NewApp(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{c: c, a: a}
	s.initAPI()
	return s, nil
}

func (s *Server) initAPI() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	telemetry.NewMetrics(reg).Subscribe(s.a.EventBus)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(cors.Default())
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	pprof.Register(e, "/debug/pprof")

	c := api.Config{
		Router:      e,
		EventBus:    s.a.EventBus,
		Quiz:        s.a.Quiz,
		Leaderboard: s.a.Leaderboard,
		Theme:       s.a.Theme,
	}
	if s.a.Pubsub != nil {
		c.Redis = s.a.Pubsub
		c.PubsubPrefix = s.c.Pubsub.Prefix
	}
	api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions(slog.Default())...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.a.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
