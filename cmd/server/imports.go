package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/importer"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

const maxUploadSize = 32 << 20

func (s *server) pipeline(w http.ResponseWriter, r *http.Request) (*importer.Pipeline, bool) {
	p, err := s.imports.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return p, true
}

// storeUpload copies an uploaded spreadsheet into the upload directory under a
// fresh name and returns its path.
func (s *server) storeUpload(src io.Reader, original string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(original)))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (s *server) handleImportCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.TypeInput, "a spreadsheet must be uploaded in the file field", err))
		return
	}
	defer file.Close()

	if err := importer.ValidateFileName(header.Filename); err != nil {
		s.writeError(w, r, err)
		return
	}

	path, err := s.storeUpload(file, header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("reopen upload: %w", err))
		return
	}
	defer f.Close()

	p := s.imports.Create()
	if err := p.Upload(path, f); err != nil {
		s.imports.Remove(p.ID)
		_ = os.Remove(path)
		s.writeError(w, r, err)
		return
	}

	s.log.Info("import started", zap.String("import", p.ID), zap.String("file", header.Filename))
	writeJSON(w, http.StatusCreated, p.Snapshot())
}

func (s *server) handleImportGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

type editRowRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *server) handleImportEditRow(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n <= 0 {
		s.writeError(w, r, apperr.Input("invalid row number"))
		return
	}

	var req editRowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := p.EditRow(n, req.Field, req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *server) handleImportMargins(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}

	var flags pricing.MarginFlags
	if err := decodeJSON(r, &flags); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := p.SetMargins(flags); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *server) handleImportToggle(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	chargeID, err := parseID(r, "chargeID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := p.Toggle(chi.URLParam(r, "country"), chargeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *server) handleImportNext(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	if err := p.Next(r.Context()); err != nil {
		s.writeImportError(w, r, p, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *server) handleImportBack(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	if err := p.Back(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	if err := p.Commit(r.Context()); err != nil {
		s.writeImportError(w, r, p, err)
		return
	}
	view := p.Snapshot()
	s.imports.Remove(p.ID)
	writeJSON(w, http.StatusOK, view)
}

func (s *server) handleImportCancel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	path := p.Snapshot().FilePath
	if err := p.Cancel(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.imports.Remove(p.ID)
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("could not remove cancelled upload", zap.String("file", path), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type importErrorBody struct {
	errorBody
	Import importer.View `json:"import"`
}

// writeImportError answers with the error and the wizard state so the client
// can show row errors next to their rows.
func (s *server) writeImportError(w http.ResponseWriter, r *http.Request, p *importer.Pipeline, err error) {
	status, body := s.errorResponse(r, err)
	writeJSON(w, status, importErrorBody{errorBody: body, Import: p.Snapshot()})
}
