package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/shoplite/apiserver/internal/storage"
)

// maxAvatarBytes caps avatar uploads.
const maxAvatarBytes = 1 << 20

// AvatarHandler serves the current user's avatar from object storage.
type AvatarHandler struct {
	storage *storage.Storage
}

// NewAvatarHandler constructs an AvatarHandler over the given store.
func NewAvatarHandler(store *storage.Storage) *AvatarHandler {
	return &AvatarHandler{storage: store}
}

func avatarKey(userID int) string {
	return fmt.Sprintf("avatars/%d", userID)
}

// Upload replaces the caller's avatar with the request body.
func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar too large or unreadable")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "avatar body is empty")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "avatar must be an image")
		return
	}

	key := avatarKey(claims.UserID)
	if err := h.storage.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Printf("avatar upload: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download streams the caller's avatar back.
func (h *AvatarHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reader, err := h.storage.Get(r.Context(), avatarKey(claims.UserID))
	if err != nil {
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}
	defer reader.Close()

	// Backends report a missing object on first read, not on open.
	data, err := io.ReadAll(io.LimitReader(reader, maxAvatarBytes))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Remove deletes the caller's avatar.
func (h *AvatarHandler) Remove(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.storage.Delete(r.Context(), avatarKey(claims.UserID)); err != nil {
		log.Printf("avatar delete: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete avatar")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
