// cmd/shopping-assistant/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shopping-assistant/internal/assistant"
	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/assistant/orchestrator"
	"shopping-assistant/internal/assistant/synthesis"
	"shopping-assistant/internal/common/aws"
	"shopping-assistant/internal/common/camunda"
	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/server"
	"shopping-assistant/internal/storage"
	askassistant "shopping-assistant/internal/workers/shopping/ask-assistant"
	notifyreply "shopping-assistant/internal/workers/shopping/notify-reply"
	"shopping-assistant/pkg/registry"
)

func main() {
	bootLog := logger.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	zap.ReplaceGlobals(zapLog)
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting shopping assistant...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("mode", cfg.Assistant.Mode),
		zap.String("backend", cfg.Catalog.Backend),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()
	if err := obs.EnableTracing(cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio); err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Catalog store, retried while the backend comes up ---
	var (
		store      storage.Backend
		closeStore storage.CloseFunc
	)
	err = camunda.Retry(ctx, camunda.DefaultRetryConfig, log, "catalog connect", func(ctx context.Context) error {
		var err error
		store, closeStore, err = storage.Open(ctx, cfg, log)
		return err
	})
	if err != nil {
		zapLog.Fatal("catalog backend failed after retries", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			zapLog.Error("Error closing catalog backend", zap.Error(err))
		}
	}()
	if err := storage.Prepare(ctx, store); err != nil {
		zapLog.Fatal("catalog backend preparation failed", zap.Error(err))
	}

	// --- Assistant ---
	resolver := filter.NewResolver(filter.Vocabulary{
		Brands:     cfg.Assistant.Brands,
		Categories: cfg.Assistant.Categories,
	})
	tool := catalog.NewTool(resolver, store, log, catalog.WithMaxRows(cfg.Assistant.MaxRows))

	tools, err := registry.New(tool)
	if err != nil {
		zapLog.Fatal("tool registry failed", zap.Error(err))
	}
	if cfg.Assistant.ToolsFile != "" {
		manifest, err := registry.LoadManifest(cfg.Assistant.ToolsFile)
		if err != nil {
			zapLog.Fatal("tool manifest load failed", zap.Error(err))
		}
		if unknown := tools.Apply(manifest); len(unknown) > 0 {
			zapLog.Warn("Tool manifest names unregistered tools", zap.Strings("tools", unknown))
		}
	}

	completer, err := completion.NewOpenAIClient(cfg.LLM, log)
	if err != nil {
		zapLog.Fatal("completion client failed", zap.Error(err))
	}

	var loop assistant.Runner
	if cfg.Assistant.Mode == config.ModeAgent {
		loop = orchestrator.New(completer, tools, log,
			orchestrator.WithMaxIterations(cfg.Assistant.MaxIterations),
			orchestrator.WithMalformedRetries(cfg.Assistant.MalformedRetries),
		)
	}
	service := assistant.NewService(cfg.Assistant, loop, tool, synthesis.New(completer, log), log,
		assistant.WithObservability(obs),
	)

	// --- Zeebe workers ---
	var workers *camunda.Workers
	if cfg.Camunda.Enabled {
		zeebeClient, err := camunda.Connect(ctx, cfg.Camunda, camunda.DefaultRetryConfig, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		workers = camunda.NewWorkers(zeebeClient, log)

		if wcfg := cfg.Workers[askassistant.TaskType]; wcfg.Enabled {
			handler := askassistant.NewHandler(askassistant.LoadConfig(wcfg), service, obs, log)
			workers.Start(askassistant.TaskType, wcfg, handler.Handle)
		}

		if wcfg := cfg.Workers[notifyreply.TaskType]; wcfg.Enabled {
			var (
				email notifyreply.EmailSender
				sms   notifyreply.SMSSender
			)
			if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
				awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWSRegion)
				if err != nil {
					zapLog.Fatal("aws config load failed", zap.Error(err))
				}
				if cfg.Notifications.Email.Enabled {
					email = aws.NewSESClient(awsCfg, cfg.Notifications.Email.FromEmail)
				}
				if cfg.Notifications.SMS.Enabled {
					sms = aws.NewSNSClient(awsCfg, cfg.Notifications.SMS.SenderID)
				}
			}
			handler := notifyreply.NewHandler(notifyreply.LoadConfig(wcfg, cfg.Notifications), email, sms, obs, log)
			workers.Start(notifyreply.TaskType, wcfg, handler.Handle)
		}
		zapLog.Info("Workers registered", zap.Int("count", workers.Len()))
	}

	// --- HTTP server ---
	srv := server.New(cfg.HTTP, service, store, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if workers != nil {
		if err := workers.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Shopping assistant stopped gracefully")
}
