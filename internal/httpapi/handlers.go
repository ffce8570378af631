package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/christiandamico04/thesis-translation-backend/internal/config"
	"github.com/christiandamico04/thesis-translation-backend/internal/jobs"
	"github.com/christiandamico04/thesis-translation-backend/internal/persistence"
	"github.com/christiandamico04/thesis-translation-backend/pkg/log"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		files, err := s.store.ListFiles(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, files)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer upload.Close()

	stored, size, err := s.files.Save(header.Filename, upload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	file := &persistence.FileRecord{
		Name:       filepath.Base(header.Filename),
		StoredPath: stored,
		Size:       size,
	}
	if err := s.store.CreateFile(r.Context(), file); err != nil {
		_ = s.files.Delete(stored)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info("Stored upload %s as file %s (%d bytes)", file.Name, file.ID, size)
	writeJSON(w, http.StatusCreated, file)
}

// handleFileSubtree dispatches /api/files/{id}, /api/files/{id}/translate
// and /api/files/{id}/translations.
func (s *Server) handleFileSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing file id")
		return
	}

	switch action {
	case "":
		s.handleFileByID(w, r, id)
	case "translate":
		s.handleTranslate(w, r, id)
	case "translations":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		list, err := s.store.ListTranslations(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		file, err := s.store.GetFile(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, file)
	case http.MethodDelete:
		file, err := s.store.GetFile(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if err := s.store.DeleteFile(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		if err := s.files.Delete(file.StoredPath); err != nil {
			log.Warn("Failed to delete stored bytes for file %s: %v", id, err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type translateRequest struct {
	SrcLang string `json:"src_lang"`
	DstLang string `json:"dst_lang"`
	Async   bool   `json:"async"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request, fileID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.DstLang) == "" {
		writeError(w, http.StatusBadRequest, "dst_lang is required")
		return
	}
	if strings.TrimSpace(req.SrcLang) == "" {
		req.SrcLang = "auto"
	}

	file, err := s.store.GetFile(r.Context(), fileID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	content, err := s.files.ReadAll(file.StoredPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	record := &persistence.TranslationRecord{
		FileID:       file.ID,
		SrcLanguage:  req.SrcLang,
		DstLanguage:  req.DstLang,
		OriginalText: string(content),
	}
	if err := s.store.CreateTranslation(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Async {
		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    "api",
			DedupeKey: fmt.Sprintf("%s|%s|%s", file.ID, req.SrcLang, req.DstLang),
			Payload: jobs.JobPayload{
				TranslationID: record.ID,
				FileID:        file.ID,
				SrcLang:       req.SrcLang,
				DstLang:       req.DstLang,
			},
		})
		if !created {
			// An identical request is already in flight; drop the
			// record we just created and point at the active one.
			_ = s.store.DeleteTranslation(r.Context(), record.ID)
			writeJSON(w, http.StatusOK, map[string]any{
				"created":        false,
				"job":            job,
				"translation_id": job.Payload.TranslationID,
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"created":        true,
			"job":            job,
			"translation_id": record.ID,
			"status":         persistence.TranslationStatusPending,
		})
		return
	}

	if err := s.runner.Run(r.Context(), record.ID); err != nil {
		got, loadErr := s.store.GetTranslation(r.Context(), record.ID)
		if loadErr != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusInternalServerError, got)
		return
	}
	got, err := s.store.GetTranslation(r.Context(), record.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, got)
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	list, err := s.store.ListTranslations(r.Context(), r.URL.Query().Get("file"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleTranslationSubtree dispatches /api/translations/{id} and
// /api/translations/{id}/download.
func (s *Server) handleTranslationSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/translations/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing translation id")
		return
	}

	switch action {
	case "":
		s.handleTranslationByID(w, r, id)
	case "download":
		s.handleDownload(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleTranslationByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		record, err := s.store.GetTranslation(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	case http.MethodDelete:
		if err := s.store.DeleteTranslation(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, err := s.store.GetTranslation(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if record.Status != persistence.TranslationStatusDone {
		writeError(w, http.StatusConflict, fmt.Sprintf("translation is %s, not done", record.Status))
		return
	}

	base := "translation"
	if file, err := s.store.GetFile(r.Context(), record.FileID); err == nil {
		base = strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	}
	filename := fmt.Sprintf("%s_%s.txt", base, record.DstLanguage)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(record.TranslatedText))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
