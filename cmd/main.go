package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/christiandamico04/thesis-translation-backend/internal/cache"
	"github.com/christiandamico04/thesis-translation-backend/internal/config"
	"github.com/christiandamico04/thesis-translation-backend/internal/httpapi"
	"github.com/christiandamico04/thesis-translation-backend/internal/jobs"
	"github.com/christiandamico04/thesis-translation-backend/internal/llm"
	"github.com/christiandamico04/thesis-translation-backend/internal/persistence"
	"github.com/christiandamico04/thesis-translation-backend/internal/service"
	"github.com/christiandamico04/thesis-translation-backend/internal/storage"
	"github.com/christiandamico04/thesis-translation-backend/internal/translator"
	"github.com/christiandamico04/thesis-translation-backend/pkg/log"
)

const terminalJobRetention = 7 * 24 * time.Hour

type jobQueue interface {
	Start(exec jobs.Executor)
	Stop()
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	settingsPath := config.RuntimeSettingsFilePath()
	opts := make([]config.Option, 0, 1)
	if saved, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(saved))
	} else if !os.IsNotExist(err) {
		log.Warn("Ignoring unreadable settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer store.Close()

	files, err := storage.New(cfg.Server.UploadDir())
	if err != nil {
		log.Fatal("Failed to open upload storage: %v", err)
	}

	active, err := buildTranslator(cfg.LLM, cfg.Translate)
	if err != nil {
		log.Fatal("Failed to build translator: %v", err)
	}
	swap := service.NewSwappableTranslator(active)
	runner := service.NewRunner(store, files, swap)
	queue := jobs.NewQueue(cfg.Server.JobWorkers, store)

	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		log.Fatal("Failed to init settings store: %v", err)
	}

	engine := cron.New()
	schedule := &maintenanceSchedule{
		engine: engine,
		task:   maintenanceTask(store, files),
	}
	if err := schedule.reschedule(cfg.Translate.MaintenanceCron); err != nil {
		log.Fatal("Failed to schedule maintenance: %v", err)
	}

	apply := func(next config.RuntimeSettings) error {
		llmCfg := cfg.LLM
		llmCfg.APIURL = next.LLMAPIURL
		llmCfg.APIKey = next.LLMAPIKey
		llmCfg.Model = next.LLMModel

		trCfg := cfg.Translate
		trCfg.MaxCharCount = next.MaxCharCount
		trCfg.ChunkTargetSize = next.ChunkTargetSize

		rebuilt, err := buildTranslator(llmCfg, trCfg)
		if err != nil {
			return err
		}
		swap.Set(rebuilt)
		if err := schedule.reschedule(next.MaintenanceCron); err != nil {
			return err
		}
		log.Info("Applied runtime settings: model=%s max_chars=%d", next.LLMModel, next.MaxCharCount)
		return nil
	}

	srv := httpapi.NewServer(store, files, queue, runner,
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(apply),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runWithComponents(ctx, cfg, queue, runner.Executor(), engine, srv); err != nil {
		log.Fatal("Server exited: %v", err)
	}
}

func runWithComponents(ctx context.Context, cfg *config.Config, queue jobQueue, exec jobs.Executor, engine cronEngine, srv httpServer) error {
	queue.Start(exec)
	defer queue.Stop()

	engine.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()
	log.Info("HTTP server listening on %s", cfg.Server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown: %v", err)
		}
		<-engine.Stop().Done()
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		<-engine.Stop().Done()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func buildTranslator(llmCfg config.LLMConfig, trCfg config.TranslateConfig) (service.Translator, error) {
	clientCfg := llm.Config{
		APIKey:      llmCfg.APIKey,
		APIURL:      llmCfg.APIURL,
		Model:       llmCfg.Model,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		Timeout:     llmCfg.Timeout,
	}
	retry := llm.DefaultRetryPolicy()
	retry.MaxAttempts = trCfg.RetryMaxAttempts

	client, err := llm.NewClient(&clientCfg, retry)
	if err != nil {
		return nil, err
	}
	return translator.New(client, cache.New(trCfg.CacheMaxEntries), translator.Config{
		MaxCharCount:    trCfg.MaxCharCount,
		ChunkTargetSize: trCfg.ChunkTargetSize,
	})
}

// maintenanceSchedule keeps a single cron entry and swaps it when the
// expression changes through the settings API.
type maintenanceSchedule struct {
	engine *cron.Cron
	task   func()

	mu    sync.Mutex
	entry cron.EntryID
}

func (m *maintenanceSchedule) reschedule(expr string) error {
	id, err := m.engine.AddFunc(expr, m.task)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.entry != 0 {
		m.engine.Remove(m.entry)
	}
	m.entry = id
	m.mu.Unlock()
	return nil
}

// maintenanceTask prunes old finished jobs and upload bytes that lost
// their database row.
func maintenanceTask(store *persistence.SQLiteStore, files *storage.Storage) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := store.DeleteTerminalJobsBefore(ctx, time.Now().Add(-terminalJobRetention))
		if err != nil {
			log.Error("Maintenance: pruning jobs failed: %v", err)
		} else if removed > 0 {
			log.Info("Maintenance: pruned %d finished jobs", removed)
		}

		records, err := store.ListFiles(ctx)
		if err != nil {
			log.Error("Maintenance: listing files failed: %v", err)
			return
		}
		known := make(map[string]struct{}, len(records))
		for _, record := range records {
			known[record.StoredPath] = struct{}{}
		}
		names, err := files.List()
		if err != nil {
			log.Error("Maintenance: listing storage failed: %v", err)
			return
		}
		for _, name := range names {
			if _, ok := known[name]; ok {
				continue
			}
			if err := files.Delete(name); err != nil {
				log.Warn("Maintenance: failed to delete orphan %s: %v", name, err)
				continue
			}
			log.Info("Maintenance: removed orphan upload %s", name)
		}
	}
}
