package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careerprep/internal/app"
	"careerprep/internal/config"
	"careerprep/internal/infra/memory"
	pgstore "careerprep/internal/infra/postgres"
	redisstore "careerprep/internal/infra/redis"
	"careerprep/internal/llm"
	"careerprep/internal/render"
	transport "careerprep/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and WebSocket server",
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
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 15*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	generator, closeGenerator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGenerator()

	var results app.ResultRepository = memory.NewAssessmentRepository()
	var letters app.CoverLetterRepository = memory.NewCoverLetterRepository()
	if pool != nil {
		results = pgstore.NewAssessmentRepository(pool)
		letters = pgstore.NewCoverLetterRepository(pool)
	}

	historyTTL := config.TTLDuration(cfg.Quiz.HistoryTTL, time.Minute)
	timeBudget := config.TTLDuration(cfg.Quiz.TimeBudget, app.DefaultTimeBudget)
	// A marker must outlive a full quiz even with no activity between Start and expiry.
	markerTTL := redisTTL
	if floor := timeBudget + time.Minute; markerTTL < floor {
		markerTTL = floor
	}
	var store app.SessionRepository
	var drafts app.DraftStore
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, markerTTL)
		drafts = redisstore.NewDraftStore(redisClient, config.TTLDuration(cfg.CoverLetter.DraftTTL, 24*time.Hour))
		results = redisstore.NewHistoryCache(redisClient, results, historyTTL)
	} else {
		store = memory.NewSessionStore()
		drafts = memory.NewDraftStore()
		results = memory.NewHistoryCache(results, historyTTL)
	}

	quizService := app.NewQuizService(store, generator, results, logger.Named("quiz"),
		app.WithTimeBudget(timeBudget),
	)

	markdown := render.NewMarkdown()
	opts := render.DefaultOptions()
	opts.MarginMM = cfg.Render.MarginMM
	opts.Scale = cfg.Render.Scale
	opts.Timeout = config.TTLDuration(cfg.Render.ChromeTimeout, opts.Timeout)
	if cfg.Render.Filename != "" {
		opts.FilenameTemplate = cfg.Render.Filename
	}
	pdf := render.NewPDFRenderer(markdown, opts, logger.Named("render"))
	letterService := app.NewCoverLetterService(letters, drafts, markdown, pdf, logger.Named("coverletter"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(quizService, logger.Named("ws")).ServeWS)
	transport.NewAPIHandler(quizService, letterService, logger.Named("api")).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// PDF export waits on Chrome, so writes get the render timeout on top.
		WriteTimeout: 15*time.Second + opts.Timeout,
	}

	go func() {
		logger.Info("starting careerprep service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newGenerator uses Gemini when an API key is configured and the built-in
// question bank otherwise.
func newGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.QuestionGenerator, func(), error) {
	size := cfg.Quiz.Size
	if size <= 0 {
		size = 10
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("no LLM API key configured, serving questions from the sample bank")
		return memory.NewQuestionBank(memory.SampleQuestions(), size), func() {}, nil
	}

	client, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return nil, nil, err
	}
	profile := llm.Profile{Industry: cfg.Quiz.Industry, Skills: cfg.Quiz.Skills}
	gen := llm.NewQuizGenerator(client, profile, size, logger.Named("llm"))
	return gen, func() { _ = client.Close() }, nil
}
