// Package service runs translations against stored files and records
// the outcome. The HTTP handler uses it for synchronous requests and
// the job queue uses it as its executor.
package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/christiandamico04/thesis-translation-backend/internal/jobs"
	"github.com/christiandamico04/thesis-translation-backend/internal/persistence"
	"github.com/christiandamico04/thesis-translation-backend/internal/storage"
	"github.com/christiandamico04/thesis-translation-backend/pkg/log"
)

type Translator interface {
	Translate(ctx context.Context, text, srcLang, dstLang string) (string, error)
}

// SwappableTranslator holds the active translator and lets a settings
// update replace it without restarting in-flight plumbing.
type SwappableTranslator struct {
	current atomic.Pointer[Translator]
}

func NewSwappableTranslator(t Translator) *SwappableTranslator {
	s := &SwappableTranslator{}
	s.Set(t)
	return s
}

func (s *SwappableTranslator) Set(t Translator) {
	s.current.Store(&t)
}

func (s *SwappableTranslator) Translate(ctx context.Context, text, srcLang, dstLang string) (string, error) {
	t := s.current.Load()
	if t == nil || *t == nil {
		return "", fmt.Errorf("no translator configured")
	}
	return (*t).Translate(ctx, text, srcLang, dstLang)
}

type Runner struct {
	store     *persistence.SQLiteStore
	files     *storage.Storage
	translate Translator
}

func NewRunner(store *persistence.SQLiteStore, files *storage.Storage, translate Translator) *Runner {
	return &Runner{store: store, files: files, translate: translate}
}

// Run executes the translation identified by translationID and records
// the result. A record that already finished is left untouched.
func (r *Runner) Run(ctx context.Context, translationID string) error {
	record, err := r.store.GetTranslation(ctx, translationID)
	if err != nil {
		return fmt.Errorf("load translation %s: %w", translationID, err)
	}
	if record.Status == persistence.TranslationStatusDone {
		return nil
	}

	file, err := r.store.GetFile(ctx, record.FileID)
	if err != nil {
		_ = r.store.UpdateTranslation(ctx, record.ID, persistence.TranslationStatusFailed, "", err.Error())
		return fmt.Errorf("load file %s: %w", record.FileID, err)
	}

	if err := r.store.UpdateTranslation(ctx, record.ID, persistence.TranslationStatusRunning, "", ""); err != nil {
		return err
	}
	if err := r.store.UpdateFileStatus(ctx, file.ID, persistence.FileStatusTranslating); err != nil {
		log.Warn("Failed to mark file %s as translating: %v", file.ID, err)
	}

	text := record.OriginalText
	if text == "" {
		content, err := r.files.ReadAll(file.StoredPath)
		if err != nil {
			r.fail(ctx, record.ID, file.ID, err)
			return fmt.Errorf("read file %s: %w", file.ID, err)
		}
		text = string(content)
	}

	result, err := r.translate.Translate(ctx, text, record.SrcLanguage, record.DstLanguage)
	if err != nil {
		r.fail(ctx, record.ID, file.ID, err)
		return err
	}

	if err := r.store.UpdateTranslation(ctx, record.ID, persistence.TranslationStatusDone, result, ""); err != nil {
		return err
	}
	if err := r.store.UpdateFileStatus(ctx, file.ID, persistence.FileStatusTranslated); err != nil {
		log.Warn("Failed to mark file %s as translated: %v", file.ID, err)
	}
	log.Info("Translation %s finished (%s → %s)", record.ID, record.SrcLanguage, record.DstLanguage)
	return nil
}

func (r *Runner) fail(ctx context.Context, translationID, fileID string, cause error) {
	if err := r.store.UpdateTranslation(ctx, translationID, persistence.TranslationStatusFailed, "", cause.Error()); err != nil {
		log.Error("Failed to record failure for translation %s: %v", translationID, err)
	}
	if err := r.store.UpdateFileStatus(ctx, fileID, persistence.FileStatusUploaded); err != nil {
		log.Warn("Failed to reset status for file %s: %v", fileID, err)
	}
}

// Executor adapts Run to the job queue.
func (r *Runner) Executor() jobs.Executor {
	return func(ctx context.Context, job *jobs.TranslationJob) error {
		return r.Run(ctx, job.Payload.TranslationID)
	}
}
