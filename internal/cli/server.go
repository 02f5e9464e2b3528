package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"study-battle/internal/app"
	"study-battle/internal/config"
	"study-battle/internal/infra/local"
	"study-battle/internal/infra/memory"
	pgbank "study-battle/internal/infra/postgres"
	redisinfra "study-battle/internal/infra/redis"
	transport "study-battle/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// runServer selects the backends exactly once and injects them: Redis present
// means online leaderboards plus match mode, otherwise file-backed scores and
// no sync. There is no runtime migration between backends.
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var loader memory.SetLoader = memory.NewStaticSetLoader(nil)
	if pool != nil {
		loader = pgbank.NewSetLoader(pool)
	}
	var bank app.QuestionSource
	if redisClient != nil {
		bank = redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
	} else {
		bank = memory.NewQuestionCache(loader, questionTTL)
	}

	var store app.LeaderboardStore
	var coordinator app.MatchCoordinator
	if redisClient != nil {
		store = redisinfra.NewLeaderboardStore(redisClient)
		matchTTL := config.TTLDuration(cfg.Match.TTL, 2*time.Hour)
		coordinator = redisinfra.NewMatchCoordinator(redisClient, matchTTL)
		log.Printf("using redis backend (match mode enabled)")
	} else {
		dir := cfg.Leaderboard.Dir
		if dir == "" {
			dir = "data"
		}
		store, err = local.NewLeaderboardStore(dir)
		if err != nil {
			return err
		}
		log.Printf("using local backend at %s (match mode unavailable)", dir)
	}

	service := app.NewQuizService(store, bank, coordinator)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/leaderboard", transport.LeaderboardHandler(service))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting study-battle on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
