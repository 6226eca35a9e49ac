package media

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"social/internal/auth"
	"social/internal/httpx"
)

// maxUploadSize bounds the multipart body held in memory per request.
const maxUploadSize = 10 << 20 // 10 MiB

// Store is what the handlers need from the media repository.
type Store interface {
	Create(ctx context.Context, m *Media) error
	ListByUser(ctx context.Context, userID string) ([]Media, error)
}

type Handlers struct {
	store    Store
	uploader Uploader
	log      *slog.Logger
}

func NewHandlers(store Store, uploader Uploader, log *slog.Logger) *Handlers {
	return &Handlers{store: store, uploader: uploader, log: log}
}

func (h *Handlers) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "No file found. Please add a file and try again!")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "No file found. Please add a file and try again!")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		httpx.Fail(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	userID := auth.UserID(r.Context())
	h.log.Info("starting media upload", "name", header.Filename, "type", mimeType, "user_id", userID)

	result, err := h.uploader.Upload(r.Context(), header.Filename, mimeType, header.Size, file)
	if err != nil {
		h.log.Error("error uploading media", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error uploading media")
		return
	}

	m := &Media{
		ID:           uuid.NewString(),
		UserID:       userID,
		PublicID:     result.PublicID,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		URL:          result.URL,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.Create(r.Context(), m); err != nil {
		h.log.Error("error saving media record", "public_id", m.PublicID, "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error uploading media")
		return
	}

	h.log.Info("media uploaded", "media_id", m.ID, "public_id", m.PublicID)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"mediaId": m.ID,
		"url":     m.URL,
		"message": "Media uploaded successfully",
	})
}

func (h *Handlers) GetAllMedia(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.log.Error("error fetching media", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error fetching media")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
