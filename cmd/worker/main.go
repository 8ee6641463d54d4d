package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/adapter/repo"
	"studio/internal/infra"
	"studio/internal/modelcfg"
	"studio/internal/orchestrator"
	image "studio/internal/providers/image"
	"studio/internal/providers/vision"
	"studio/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		bootLogger := infra.NewLogger("development")
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open file store")
	}
	models, err := loadModels(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load model registry")
	}

	gens := repo.NewGenerationRepository(pool)
	jobs := repo.NewJobRepository(pool)
	callClient := &http.Client{Timeout: cfg.CallTimeout}

	orch := orchestrator.New(orchestrator.Deps{
		Generations: gens,
		Jobs:        jobs,
		Store:       store,
		Resolver:    orchestrator.StoreResolver{Store: store, CatalogPrefix: cfg.CatalogPrefix},
		Extractor: vision.NewGeminiExtractor(vision.GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiVisionModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: callClient,
		}),
		Generators: map[string]image.Generator{
			"gemini": image.NewGeminiGenerator(image.GeminiOptions{
				APIKey:     cfg.GeminiAPIKey,
				BaseURL:    cfg.GeminiBaseURL,
				HTTPClient: callClient,
			}),
			"dashscope": image.NewDashScopeGenerator(image.DashScopeOptions{
				APIKey:     cfg.DashScopeAPIKey,
				BaseURL:    cfg.DashScopeBaseURL,
				HTTPClient: callClient,
			}),
		},
		Models: models,
	}, orchestrator.Config{
		MaxAttempts:     cfg.JobMaxAttempts,
		PromptWordLimit: cfg.PromptWordLimit,
		WaitTimeout:     cfg.WaitTimeout,
		RenderPrefix:    cfg.RenderPrefix,
		DefaultLocale:   cfg.DefaultLocale,
	}, logger)

	worker := orchestrator.NewWorker(orch, jobs, orchestrator.WorkerConfig{
		Count:        cfg.WorkerCount,
		PollInterval: cfg.JobPollInterval,
		StaleAfter:   cfg.StaleClaimAfter,
	}, logger)

	logger.Info().Int("workers", cfg.WorkerCount).Msg("worker pool starting")
	if err := worker.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker pool stopped")
	}
	logger.Info().Msg("worker pool stopped")
}

func loadModels(cfg *infra.Config) (*modelcfg.Registry, error) {
	if cfg.ModelConfigPath == "" {
		return modelcfg.Default(), nil
	}
	data, err := os.ReadFile(cfg.ModelConfigPath)
	if err != nil {
		return nil, err
	}
	return modelcfg.Load(data)
}
