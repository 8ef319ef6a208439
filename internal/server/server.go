package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/moviequiz/internal/api"
	"github.com/victornm/moviequiz/internal/catalog"
	"github.com/victornm/moviequiz/internal/event"
	"github.com/victornm/moviequiz/internal/game"
	"github.com/victornm/moviequiz/internal/poster"
	"github.com/victornm/moviequiz/internal/question"
	"github.com/victornm/moviequiz/internal/statistics"
	"github.com/victornm/moviequiz/internal/telemetry"
	"github.com/victornm/moviequiz/internal/transport"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	IMDb struct {
		BaseURL string
		APIKey  string
	}

	TMDB struct {
		APIURL     string
		ImagesURL  string
		APIKey     string
		PosterSize string
	}

	Poster struct {
		// Strategy is imdb or tmdb.
		Strategy string
	}

	HTTPClient struct {
		Timeout time.Duration
	}

	Cache struct {
		Enabled bool
		Prefix  string
		TTL     time.Duration
	}

	Quiz struct {
		Threshold         string
		Template          string
		QuestionsPerRound int
		AdvanceDelay      time.Duration
	}

	Stats struct {
		// Backend is redis or postgres.
		Backend string
		Prefix  string
	}

	Redis struct {
		Addrs []string
		Pass  string
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}
}

// DefaultConfig returns the values used when neither the file nor the environment set them.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 9090

	c.IMDb.BaseURL = "https://imdb-api.com/en/API"
	c.TMDB.APIURL = "https://api.themoviedb.org/3"
	c.TMDB.ImagesURL = "https://image.tmdb.org"
	c.TMDB.PosterSize = "w500"
	c.Poster.Strategy = poster.StrategyIMDb

	c.HTTPClient.Timeout = 10 * time.Second

	c.Cache.Enabled = true
	c.Cache.Prefix = "moviequiz"
	c.Cache.TTL = time.Hour

	c.Quiz.Threshold = "7"
	c.Quiz.Template = question.DefaultTemplate
	c.Quiz.QuestionsPerRound = game.DefaultQuestionsPerRound
	c.Quiz.AdvanceDelay = game.DefaultAdvanceDelay

	c.Stats.Backend = BackendRedis
	c.Stats.Prefix = "moviequiz"

	c.Redis.Addrs = []string{"localhost:6379"}

	c.Postgres.Addr = "localhost:5432"
	c.Postgres.User = "postgres"
	c.Postgres.Name = "moviequiz"

	return c
}

type Server struct {
	c    Config
	view game.View

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		factory   *question.Factory
		stats     *statistics.Store
		presenter *game.Presenter
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

// Init connects the infrastructure and wires the quiz to view.
func Init(c Config, view game.View) (*Server, error) {
	s := &Server{c: c, view: view}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

// Presenter returns the game the user interface drives.
func (s *Server) Presenter() *game.Presenter {
	return s.service.presenter
}

func (s *Server) initInfra() error {
	if s.c.Stats.Backend == BackendRedis || s.c.Cache.Enabled {
		if err := s.initRedis(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if s.c.Stats.Backend == BackendPostgres {
		if err := s.initPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := s.c.Postgres
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() error {
	var fetcher transport.Fetcher = transport.NewHTTPFetcher(transport.Config{
		Timeout: s.c.HTTPClient.Timeout,
	})
	if s.c.Cache.Enabled {
		fetcher = transport.NewCachedFetcher(fetcher, transport.CacheConfig{
			Redis:  s.infra.redis,
			Prefix: s.c.Cache.Prefix,
			TTL:    s.c.Cache.TTL,
		})
	}

	movies, err := catalog.NewLoader(catalog.Config{
		BaseURL: s.c.IMDb.BaseURL,
		APIKey:  s.c.IMDb.APIKey,
		Fetcher: fetcher,
	})
	if err != nil {
		return err
	}

	pc := poster.Config{Strategy: s.c.Poster.Strategy, Fetcher: fetcher}
	pc.IMDb.BaseURL = s.c.IMDb.BaseURL
	pc.IMDb.APIKey = s.c.IMDb.APIKey
	pc.TMDB.APIURL = s.c.TMDB.APIURL
	pc.TMDB.ImagesURL = s.c.TMDB.ImagesURL
	pc.TMDB.APIKey = s.c.TMDB.APIKey
	pc.TMDB.PosterSize = s.c.TMDB.PosterSize

	posters, err := poster.New(pc)
	if err != nil {
		return err
	}

	threshold, err := decimal.NewFromString(s.c.Quiz.Threshold)
	if err != nil {
		return fmt.Errorf("quiz threshold %q: %w", s.c.Quiz.Threshold, err)
	}

	s.service.factory = question.NewFactory(question.Config{
		EventBus:  s.eb,
		Catalog:   movies,
		Posters:   posters,
		Threshold: threshold,
		Template:  s.c.Quiz.Template,
	})

	kv, err := s.statsKV()
	if err != nil {
		return err
	}

	s.service.stats = statistics.NewStore(statistics.Config{
		KV:     kv,
		Prefix: s.c.Stats.Prefix,
	})

	s.service.presenter = game.NewPresenter(game.Config{
		EventBus:          s.eb,
		Factory:           s.service.factory,
		Stats:             s.service.stats,
		View:              s.view,
		QuestionsPerRound: s.c.Quiz.QuestionsPerRound,
		AdvanceDelay:      s.c.Quiz.AdvanceDelay,
	})

	return nil
}

func (s *Server) statsKV() (statistics.KV, error) {
	switch s.c.Stats.Backend {
	case BackendRedis:
		return statistics.NewRedisKV(s.infra.redis), nil
	case BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		kv := statistics.NewPostgresKV(s.infra.postgres)
		if err := kv.Migrate(ctx); err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown stats backend %q", s.c.Stats.Backend)
	}
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Engine: e,
		Stats:  s.service.stats,
		Game:   s.service.presenter,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(slog.Default()))
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start serves the admin APIs and starts the game. It returns when both servers stop.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.service.presenter.Start(ctx)

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

	return eg.Wait()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.presenter.Stop()
	s.service.factory.Close()
	s.eb.Stop()

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
