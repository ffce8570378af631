package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christiandamico04/thesis-translation-backend/internal/config"
	"github.com/christiandamico04/thesis-translation-backend/internal/jobs"
	"github.com/christiandamico04/thesis-translation-backend/internal/persistence"
	"github.com/christiandamico04/thesis-translation-backend/internal/service"
	"github.com/christiandamico04/thesis-translation-backend/internal/storage"
)

type scriptedTranslator struct {
	err error
}

func (s *scriptedTranslator) Translate(_ context.Context, text, _, dstLang string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "[" + dstLang + "] " + text, nil
}

type env struct {
	server     *httptest.Server
	store      *persistence.SQLiteStore
	files      *storage.Storage
	queue      *jobs.Queue
	translator *scriptedTranslator
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()

	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	files, err := storage.New(t.TempDir())
	require.NoError(t, err)

	translator := &scriptedTranslator{}
	runner := service.NewRunner(store, files, translator)

	queue := jobs.NewQueue(1, store)
	queue.Start(runner.Executor())
	t.Cleanup(queue.Stop)

	srv := NewServer(store, files, queue, runner, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &env{server: ts, store: store, files: files, queue: queue, translator: translator}
}

func (e *env) upload(t *testing.T, name, content string) persistence.FileRecord {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+"/api/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var file persistence.FileRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file))
	return file
}

func (e *env) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.server.URL + "/api/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadAndListFiles(t *testing.T) {
	e := newEnv(t)

	file := e.upload(t, "thesis.txt", "ciao mondo")
	assert.NotEmpty(t, file.ID)
	assert.Equal(t, "thesis.txt", file.Name)
	assert.Equal(t, persistence.FileStatusUploaded, file.Status)
	assert.Equal(t, int64(10), file.Size)

	resp, err := http.Get(e.server.URL + "/api/files")
	require.NoError(t, err)
	list := decodeBody[[]persistence.FileRecord](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, file.ID, list[0].ID)
}

func TestUploadRequiresFileField(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "nope"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+"/api/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMissingFile(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.server.URL + "/api/files/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTranslateSync(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "doc.txt", "ciao mondo")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{
		"src_lang": "it",
		"dst_lang": "en",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	record := decodeBody[persistence.TranslationRecord](t, resp)
	assert.Equal(t, persistence.TranslationStatusDone, record.Status)
	assert.Equal(t, "[en] ciao mondo", record.TranslatedText)

	got, err := e.store.GetFile(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, persistence.FileStatusTranslated, got.Status)
}

func TestTranslateRequiresDstLang(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "doc.txt", "ciao")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{
		"src_lang": "it",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTranslateSyncFailure(t *testing.T) {
	e := newEnv(t)
	e.translator.err = errors.New("endpoint down")
	file := e.upload(t, "doc.txt", "ciao")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{
		"dst_lang": "en",
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	record := decodeBody[persistence.TranslationRecord](t, resp)
	assert.Equal(t, persistence.TranslationStatusFailed, record.Status)
	assert.Contains(t, record.Error, "endpoint down")
}

func TestTranslateAsync(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "doc.txt", "ciao mondo")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{
		"src_lang": "it",
		"dst_lang": "en",
		"async":    true,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	accepted := decodeBody[map[string]any](t, resp)
	translationID, _ := accepted["translation_id"].(string)
	require.NotEmpty(t, translationID)

	require.Eventually(t, func() bool {
		record, err := e.store.GetTranslation(context.Background(), translationID)
		return err == nil && record.Status == persistence.TranslationStatusDone
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTranslateAsyncDeduplicates(t *testing.T) {
	e := newEnv(t)
	e.translator.err = errors.New("keep failing")
	file := e.upload(t, "doc.txt", "ciao")

	body := map[string]any{"src_lang": "it", "dst_lang": "en", "async": true}
	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", body)
	first := decodeBody[map[string]any](t, resp)
	require.Equal(t, true, first["created"])

	resp = e.postJSON(t, "/api/files/"+file.ID+"/translate", body)
	defer resp.Body.Close()
	second := decodeBody[map[string]any](t, resp)
	if second["created"] == false {
		// Collapsed onto the in-flight job.
		assert.Equal(t, first["translation_id"], second["translation_id"])
	}
}

func TestListTranslationsFilteredByFile(t *testing.T) {
	e := newEnv(t)
	fileA := e.upload(t, "a.txt", "uno")
	fileB := e.upload(t, "b.txt", "due")

	resp := e.postJSON(t, "/api/files/"+fileA.ID+"/translate", map[string]any{"dst_lang": "en"})
	resp.Body.Close()
	resp = e.postJSON(t, "/api/files/"+fileB.ID+"/translate", map[string]any{"dst_lang": "en"})
	resp.Body.Close()

	httpResp, err := http.Get(e.server.URL + "/api/translations")
	require.NoError(t, err)
	all := decodeBody[[]persistence.TranslationRecord](t, httpResp)
	assert.Len(t, all, 2)

	httpResp, err = http.Get(e.server.URL + "/api/translations?file=" + fileA.ID)
	require.NoError(t, err)
	filtered := decodeBody[[]persistence.TranslationRecord](t, httpResp)
	require.Len(t, filtered, 1)
	assert.Equal(t, fileA.ID, filtered[0].FileID)

	httpResp, err = http.Get(e.server.URL + "/api/files/" + fileA.ID + "/translations")
	require.NoError(t, err)
	byFile := decodeBody[[]persistence.TranslationRecord](t, httpResp)
	assert.Len(t, byFile, 1)
}

func TestDownloadTranslation(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "thesis.txt", "ciao mondo")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{"src_lang": "it", "dst_lang": "en"})
	record := decodeBody[persistence.TranslationRecord](t, resp)

	httpResp, err := http.Get(e.server.URL + "/api/translations/" + record.ID + "/download")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Contains(t, httpResp.Header.Get("Content-Disposition"), `filename="thesis_en.txt"`)

	content, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[en] ciao mondo", string(content))
}

func TestDownloadUnfinishedTranslation(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "doc.txt", "ciao")

	record := &persistence.TranslationRecord{
		FileID:       file.ID,
		SrcLanguage:  "it",
		DstLanguage:  "en",
		OriginalText: "ciao",
	}
	require.NoError(t, e.store.CreateTranslation(context.Background(), record))

	resp, err := http.Get(e.server.URL + "/api/translations/" + record.ID + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteFileRemovesTranslationsAndBytes(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "doc.txt", "ciao")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{"dst_lang": "en"})
	record := decodeBody[persistence.TranslationRecord](t, resp)

	req, err := http.NewRequest(http.MethodDelete, e.server.URL+"/api/files/"+file.ID, nil)
	require.NoError(t, err)
	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	_, err = e.store.GetTranslation(context.Background(), record.ID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	names, err := e.files.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestJobsEndpoint(t *testing.T) {
	e := newEnv(t)
	file := e.upload(t, "doc.txt", "ciao")

	resp := e.postJSON(t, "/api/files/"+file.ID+"/translate", map[string]any{"dst_lang": "en", "async": true})
	resp.Body.Close()

	httpResp, err := http.Get(e.server.URL + "/api/jobs")
	require.NoError(t, err)
	list := decodeBody[[]jobs.TranslationJob](t, httpResp)
	require.NotEmpty(t, list)
	assert.Equal(t, file.ID, list[0].Payload.FileID)
}

func TestJobStream(t *testing.T) {
	e := newEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/jobs/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line := make([]byte, 6)
	_, err = io.ReadFull(resp.Body, line)
	require.NoError(t, err)
	assert.Equal(t, "data: ", string(line))
}

func TestSettingsNotConfigured(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.server.URL + "/api/settings")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestSettingsRoundTrip(t *testing.T) {
	settingsPath := filepath.Join(t.TempDir(), "settings.json")
	initial := config.RuntimeSettings{
		LLMAPIURL:       "http://localhost:8000/v1",
		LLMModel:        "base-model",
		MaxCharCount:    3500,
		ChunkTargetSize: 2000,
		MaintenanceCron: "0 3 * * *",
	}
	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, initial)
	require.NoError(t, err)

	var applied []config.RuntimeSettings
	e := newEnv(t,
		WithRuntimeSettingsStore(settingsStore),
		WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			applied = append(applied, next)
			return nil
		}),
	)

	resp, err := http.Get(e.server.URL + "/api/settings")
	require.NoError(t, err)
	got := decodeBody[config.RuntimeSettings](t, resp)
	assert.Equal(t, "base-model", got.LLMModel)

	next := initial
	next.LLMModel = "next-model"
	payload, err := json.Marshal(next)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, e.server.URL+"/api/settings", bytes.NewReader(payload))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	updated := decodeBody[config.RuntimeSettings](t, putResp)
	assert.Equal(t, "next-model", updated.LLMModel)
	require.Len(t, applied, 1)
	assert.Equal(t, "next-model", applied[0].LLMModel)
}

func TestSettingsRejectsInvalidUpdate(t *testing.T) {
	settingsPath := filepath.Join(t.TempDir(), "settings.json")
	initial := config.RuntimeSettings{
		LLMAPIURL:       "http://localhost:8000/v1",
		LLMModel:        "base-model",
		MaxCharCount:    3500,
		ChunkTargetSize: 2000,
		MaintenanceCron: "0 3 * * *",
	}
	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, initial)
	require.NoError(t, err)
	e := newEnv(t, WithRuntimeSettingsStore(settingsStore))

	bad := initial
	bad.ChunkTargetSize = 9000
	payload, err := json.Marshal(bad)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, e.server.URL+"/api/settings", bytes.NewReader(payload))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/api/jobs", "/api/healthz"} {
		resp, err := http.Post(e.server.URL+path, "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, fmt.Sprintf("POST %s", path))
	}
}
