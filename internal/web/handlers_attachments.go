package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetinventory/internal/files"
)

func (s *Server) attachmentsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.attachments == nil || !s.attachments.Enabled() {
		respondError(w, r, files.ErrStorageDisabled, http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleUploadAttachment stores a multipart "file" against an asset.
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w, r) {
		return
	}
	file, header, err := formFile(w, r, files.DefaultMaxAttachmentSize)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}
	defer file.Close()

	att, err := s.attachments.Attach(r.Context(),
		chi.URLParam(r, "id"),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		r.FormValue("uploaded_by"),
	)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w, r) {
		return
	}
	list, err := s.attachments.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDownloadAttachment returns a presigned object URL.
func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w, r) {
		return
	}
	url, err := s.attachments.DownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
