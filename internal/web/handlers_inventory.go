package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

// ============================================================================
// Trees
// ============================================================================

func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	forest, err := s.inventory.CategoryTree(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

func (s *Server) handleLocationTree(w http.ResponseWriter, r *http.Request) {
	forest, err := s.inventory.LocationTree(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c inventory.Category
	if err := decodeJSON(w, r, &c); err != nil {
		respondError(w, r, err, 0)
		return
	}
	created, err := s.inventory.CreateCategory(r.Context(), c)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var l inventory.Location
	if err := decodeJSON(w, r, &l); err != nil {
		respondError(w, r, err, 0)
		return
	}
	created, err := s.inventory.CreateLocation(r.Context(), l)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleMoveLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParentID string `json:"parent_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err, 0)
		return
	}
	moved, err := s.inventory.MoveLocation(r.Context(), chi.URLParam(r, "id"), body.ParentID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Events
// ============================================================================

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var e inventory.Event
	if err := decodeJSON(w, r, &e); err != nil {
		respondError(w, r, err, 0)
		return
	}
	created, err := s.inventory.CreateEvent(r.Context(), e)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleEventManifest returns the event manifest as JSON, or as a CSV
// download with ?format=csv.
func (s *Server) handleEventManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.inventory.EventManifest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, m)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="manifest_%s.csv"`, m.Event.ID))
	if err := inventory.WriteManifestCSV(w, m); err != nil {
		respondError(w, r, err, 0)
	}
}

// ============================================================================
// Asset movement and notes
// ============================================================================

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req inventory.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	asset, err := s.inventory.CheckoutAsset(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req inventory.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	asset, err := s.inventory.InstallAsset(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err, 0)
		return
	}
	asset, err := s.inventory.CheckinAsset(r.Context(), chi.URLParam(r, "id"), body.Notes)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.inventory.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	parts, err := s.inventory.Components(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.inventory.ListNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err, 0)
		return
	}
	note, err := s.inventory.AddNote(r.Context(), chi.URLParam(r, "id"), body.Content, body.Author)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// ============================================================================
// Mass delete
// ============================================================================

// handleMassDelete deletes every asset, streaming progress as SSE. The body
// must carry the exact confirmation text.
func (s *Server) handleMassDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirm string `json:"confirm"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err, 0)
		return
	}
	if body.Confirm != inventory.MassDeleteConfirmation {
		respondError(w, r, inventory.ErrConfirmation, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	res, err := s.inventory.MassDeleteAssets(r.Context(), body.Confirm, inventory.MassDeleteOptions{
		BatchSize:  s.cfg.MassDelete.BatchSize,
		BatchDelay: s.cfg.MassDelete.BatchDelay,
		OnProgress: func(percent float64) {
			fmt.Fprintf(w, "event: progress\ndata: {\"percent\":%.1f}\n\n", percent)
			flusher.Flush()
		},
	})
	if err != nil {
		data, _ := json.Marshal(map[string]any{"error": err.Error(), "result": res})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
		return
	}
	data, _ := json.Marshal(res)
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
	flusher.Flush()
}
