package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/logging"
)

var errNoFile = errors.New("no file provided")

// formFile parses a multipart upload capped at maxSize and returns the
// "file" part.
func formFile(w http.ResponseWriter, r *http.Request, maxSize int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, importer.ErrFileTooLarge
		}
		return nil, nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	return file, header, nil
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, importer.TemplateFileName))
	_, _ = w.Write([]byte(importer.Template()))
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.imports.LimiterStatus())
}

// handleImportPreview parses and validates an upload without committing.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, s.cfg.Import.MaxFileSize)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}
	defer file.Close()

	preview, err := s.imports.Preview(r.Context(), file, header.Size)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleImportStart accepts an upload and starts a background run.
func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, s.cfg.Import.MaxFileSize)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}
	defer file.Close()

	runID, err := s.imports.Start(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func uploadStatus(err error) int {
	if errors.Is(err, importer.ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// handleImportProgress streams run progress as Server-Sent Events. Clients
// reconnecting with lastEventId skip snapshots they have already seen.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventID := -1
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.imports.Subscribe(runID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventID := 0
	for {
		select {
		case p, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {\"run_id\":%q}\n\n", runID)
				flusher.Flush()
				return
			}
			eventID++
			if eventID <= lastEventID {
				continue
			}
			data, err := json.Marshal(p)
			if err != nil {
				logging.FromContext(r.Context()).Error("progress encode", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult waits for the run to finish, bounded by the request
// timeout, and returns its result.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if r.URL.Query().Get("wait") != "true" {
		p, err := s.imports.Progress(runID)
		if err != nil {
			respondError(w, r, err, 0)
			return
		}
		if !p.State.Terminal() {
			writeJSON(w, http.StatusAccepted, p)
			return
		}
	}

	res, err := s.imports.Result(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleImportFailedRows downloads the rows of a finished run that were not
// committed, ready to be fixed and imported again.
func (s *Server) handleImportFailedRows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	p, err := s.imports.Progress(runID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if !p.State.Terminal() {
		respondError(w, r, importer.ErrRunInProgress, 0)
		return
	}
	res, err := s.imports.Result(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="failed_rows_%s.csv"`, runID))
	if err := importer.WriteFailedRows(w, res); err != nil {
		logging.FromContext(r.Context()).Error("failed rows export", "run_id", runID, "error", err)
	}
}

func (s *Server) handleImportCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.imports.Cancel(runID); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "run_id": runID})
}
