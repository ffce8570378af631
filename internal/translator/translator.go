// Package translator is the orchestration core of the service: it
// turns a (text, source, destination) request into a translation by
// driving the cache, the chunk builder, the prompt builder, the
// inference client and the output sanitizer.
package translator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/christiandamico04/thesis-translation-backend/internal/cache"
	"github.com/christiandamico04/thesis-translation-backend/internal/chunker"
	"github.com/christiandamico04/thesis-translation-backend/pkg/log"
)

const (
	// DefaultMaxCharCount is the chunking trigger: texts longer than
	// this (in runes) are split before inference. Chosen conservatively
	// below the model's context window minus prompt overhead.
	DefaultMaxCharCount = 3500

	// DefaultChunkTargetSize is the per-chunk character target, always
	// strictly below the chunking trigger.
	DefaultChunkTargetSize = 2000
)

// InferenceClient is the outbound dependency: one chat-completion call
// per invocation. Satisfied by *llm.Client.
type InferenceClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config carries the tunable thresholds of the orchestrator.
type Config struct {
	MaxCharCount    int
	ChunkTargetSize int
}

// Validate checks the threshold relationship the chunked path relies on.
func (c Config) Validate() error {
	if c.MaxCharCount <= 0 {
		return fmt.Errorf("max char count must be greater than 0")
	}
	if c.ChunkTargetSize <= 0 {
		return fmt.Errorf("chunk target size must be greater than 0")
	}
	if c.ChunkTargetSize >= c.MaxCharCount {
		return fmt.Errorf("chunk target size (%d) must be smaller than max char count (%d)",
			c.ChunkTargetSize, c.MaxCharCount)
	}
	return nil
}

// Translator orchestrates the full translation workflow. Safe for
// concurrent use; concurrent requests for the same fingerprint are
// collapsed into a single inference pass.
type Translator struct {
	client InferenceClient
	cache  *cache.TranslationCache
	config Config

	group singleflight.Group
}

// New creates a Translator. The cache is injected so its lifecycle is
// owned by the caller, not by this package.
func New(client InferenceClient, translationCache *cache.TranslationCache, config Config) (*Translator, error) {
	if client == nil {
		return nil, fmt.Errorf("inference client is required")
	}
	if translationCache == nil {
		return nil, fmt.Errorf("translation cache is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid translator config: %w", err)
	}
	return &Translator{
		client: client,
		cache:  translationCache,
		config: config,
	}, nil
}

// Translate is the facade of the orchestration core. Workflow: check
// the cache, decide between the single-call and the chunked path, run
// inference, sanitize, reassemble, and populate the cache on success.
//
// src may be empty or "auto", in which case the source language is
// detected from the text. The only error type returned is
// *TranslationError.
func (t *Translator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if src == "" || src == "auto" {
		if detected := DetectSourceLanguage(text); detected != "" {
			log.Info("Detected source language %q", detected)
			src = detected
		} else {
			src = "auto"
		}
	}

	fingerprint := cache.Fingerprint(src, dst, text)
	if cached, ok := t.cache.Get(fingerprint); ok {
		log.Info("Translation for key %s... served from cache", fingerprint[:8])
		return cached, nil
	}

	// Collapse concurrent identical requests: at most one inference
	// pass per fingerprint is in flight at any time.
	result, err, _ := t.group.Do(fingerprint, func() (interface{}, error) {
		return t.translateUncached(ctx, text, src, dst, fingerprint)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (t *Translator) translateUncached(ctx context.Context, text, src, dst, fingerprint string) (string, error) {
	// Another caller may have populated the cache while this request
	// waited on the singleflight group.
	if cached, ok := t.cache.Get(fingerprint); ok {
		return cached, nil
	}

	var final string
	if utf8.RuneCountInString(text) > t.config.MaxCharCount {
		log.Info("Text too long (%d characters), chunking", utf8.RuneCountInString(text))

		chunks := chunker.BuildChunks(text, t.config.ChunkTargetSize)
		log.Info("Text split into %d chunks", len(chunks))

		translated := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			log.Info("Translating chunk %d/%d", i+1, len(chunks))
			out, err := t.translateChunk(ctx, chunk, src, dst)
			if err != nil {
				// One failed chunk aborts the whole request: no
				// partial result, no partial cache write.
				log.Error("Chunk %d/%d failed: %v", i+1, len(chunks), err)
				return "", &TranslationError{ChunkIndex: i + 1, ChunkCount: len(chunks), Cause: err}
			}
			translated = append(translated, out)
		}
		final = strings.Join(translated, " ")
	} else {
		out, err := t.translateChunk(ctx, text, src, dst)
		if err != nil {
			return "", &TranslationError{Cause: err}
		}
		final = out
	}

	t.cache.Put(fingerprint, final)
	return final, nil
}

// translateChunk performs one prompt → inference → sanitize pass.
func (t *Translator) translateChunk(ctx context.Context, text, src, dst string) (string, error) {
	prompt := BuildPrompt(text, src, dst)

	log.Info("Sending %d characters to the inference endpoint", utf8.RuneCountInString(text))
	raw, err := t.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	return Sanitize(raw), nil
}
