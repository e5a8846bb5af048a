package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/app"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/config"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/infra/memory"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/infra/postgres"
	redisinfra "github.com/PandaDev0069/tuiz-backend-sub000/internal/infra/redis"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/realtime"
	transport "github.com/PandaDev0069/tuiz-backend-sub000/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)
	cacheTTL := config.Duration(cfg.Cache.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var games app.GameStore
	var players app.PlayerDataStore
	if pool != nil {
		store := postgres.NewStore(pool)
		games, players = store, store
	} else {
		store := memory.NewStore()
		seedDemoGame(store)
		games, players = store, store
		log.Info().Msg("postgres not configured, using in-memory store with demo game")
	}
	if redisClient != nil {
		games = redisinfra.NewQuestionCache(redisClient, games, cacheTTL)
	}

	var connStore realtime.ConnectionStore
	if redisClient != nil {
		connStore = redisinfra.NewConnectionStore(redisClient, redisTTL)
	} else {
		connStore = memory.NewConnectionStore()
	}

	clock := clockwork.NewRealClock()
	registry := realtime.NewRegistry(clock, connStore)
	hub := realtime.NewHub(registry, clock, config.Duration(cfg.Engine.CountdownLead, config.DefaultCountdownLead))
	sweeper := realtime.NewSweeper(hub, registry, clock,
		config.Duration(cfg.Engine.HeartbeatInterval, config.DefaultHeartbeatInterval),
		config.Duration(cfg.Engine.HeartbeatTimeout, config.DefaultHeartbeatTimeout),
	)

	scores := app.NewScoreService(games, players, hub, clock,
		config.Duration(cfg.Engine.AnswerGrace, config.DefaultAnswerGrace))
	boards := app.NewAggregator(players, clock)
	wsHandler := transport.NewWSHandler(registry, hub, scores, boards)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting session engine")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDemoGame loads a minimal playable game; swap in postgres for real data.
func seedDemoGame(store *memory.Store) {
	store.AddGame(domain.Game{ID: "game-1", QuizID: "quiz-1", HostID: "host-1", Status: "active"})
	store.AddPlayer(domain.Player{ID: "host-1", DeviceID: "device-host", Nickname: "Host", Role: domain.RoleHost})
	store.AddPlayer(domain.Player{ID: "p1", DeviceID: "device-1", Nickname: "Alice", Role: domain.RolePlayer})
	store.AddPlayer(domain.Player{ID: "p2", DeviceID: "device-2", Nickname: "Bob", Role: domain.RolePlayer})
	store.AddQuestion(domain.Question{ID: "q1", QuizID: "quiz-1", BasePoints: 100, TimeAllowed: 20, CorrectAnswerID: "a2"})
	store.AddQuestion(domain.Question{ID: "q2", QuizID: "quiz-1", BasePoints: 100, TimeAllowed: 20, CorrectAnswerID: "a1"})
	store.SetPlaySettings("quiz-1", domain.PlaySettings{TimeBonus: true, StreakBonus: true})
}
