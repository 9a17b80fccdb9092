package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/importer"
	"github.com/Simplici0/tradedesk/internal/store"
)

const maxJSONBody = 1 << 20

type server struct {
	auth      *authService
	stores    *store.Stores
	imports   *importer.Registry
	uploadDir string
	log       *zap.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.authMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)

		r.Get("/charges", s.handleChargesList)
		r.Post("/charges", s.handleChargesCreate)
		r.Get("/charges/by-country", s.handleChargesByCountry)
		r.Put("/charges/{id}", s.handleChargesUpdate)

		r.Get("/margins", s.handleMarginsList)
		r.Post("/margins", s.handleMarginsCreate)
		r.Put("/margins/{id}", s.handleMarginsUpdate)

		r.Get("/currency-rates", s.handleRatesList)
		r.Put("/currency-rates/{country}", s.handleRatesUpsert)

		r.Get("/products", s.handleProductsList)
		r.Get("/products/{id}", s.handleProductGet)
		r.Post("/products/{id}/quote", s.handleProductQuote)
		r.Post("/quote", s.handleQuote)

		r.Route("/imports", func(r chi.Router) {
			r.Post("/", s.handleImportCreate)
			r.Get("/{id}", s.handleImportGet)
			r.Delete("/{id}", s.handleImportCancel)
			r.Patch("/{id}/rows/{n}", s.handleImportEditRow)
			r.Put("/{id}/margins", s.handleImportMargins)
			r.Post("/{id}/charges/{country}/{chargeID}/toggle", s.handleImportToggle)
			r.Post("/{id}/next", s.handleImportNext)
			r.Post("/{id}/back", s.handleImportBack)
			r.Post("/{id}/commit", s.handleImportCommit)
		})
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

type errorBody struct {
	Error     string         `json:"error"`
	Type      string         `json:"type"`
	RowErrors []string       `json:"rowErrors,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := s.errorResponse(r, err)
	writeJSON(w, status, body)
}

func (s *server) errorResponse(r *http.Request, err error) (int, errorBody) {
	var rowErrs *importer.RowErrors
	if errors.As(err, &rowErrs) {
		return http.StatusUnprocessableEntity, errorBody{
			Error:     "some rows failed validation",
			Type:      string(apperr.TypeInput),
			RowErrors: rowErrs.Errors,
		}
	}

	status := apperr.HTTPStatus(err)
	body := errorBody{Error: err.Error(), Type: string(apperr.TypeInternal)}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Type = string(appErr.Type)
		body.Context = appErr.Context
		body.Error = appErr.Message
		if appErr.Cause != nil {
			body.Error += ": " + appErr.Cause.Error()
		}
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	return status, body
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.TypeInput, "invalid JSON body", err)
	}
	return nil
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.TypeInput, "invalid %s", param)
	}
	return id, nil
}
