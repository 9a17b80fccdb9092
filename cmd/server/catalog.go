package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/tradedesk/internal/pricing"
	"github.com/Simplici0/tradedesk/internal/store"
)

func (s *server) handleChargesList(w http.ResponseWriter, r *http.Request) {
	charges, err := s.stores.Charges.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("country")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, charges)
}

func (s *server) handleChargesByCountry(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.stores.Charges.ChargesByCountry(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *server) handleChargesCreate(w http.ResponseWriter, r *http.Request) {
	var c store.Charge
	if err := decodeJSON(r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.stores.Charges.Create(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleChargesUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var c store.Charge
	if err := decodeJSON(r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.stores.Charges.Update(r.Context(), id, c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleMarginsList(w http.ResponseWriter, r *http.Request) {
	margins, err := s.stores.Margins.ListMargins(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, margins)
}

func (s *server) handleMarginsCreate(w http.ResponseWriter, r *http.Request) {
	var m pricing.Margin
	if err := decodeJSON(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.stores.Margins.Create(r.Context(), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleMarginsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var m pricing.Margin
	if err := decodeJSON(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.stores.Margins.Update(r.Context(), id, m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleRatesList(w http.ResponseWriter, r *http.Request) {
	rates, err := s.stores.Rates.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (s *server) handleRatesUpsert(w http.ResponseWriter, r *http.Request) {
	var rate pricing.ExchangeRate
	if err := decodeJSON(r, &rate); err != nil {
		s.writeError(w, r, err)
		return
	}
	rate.Country = chi.URLParam(r, "country")

	saved, err := s.stores.Rates.Upsert(r.Context(), rate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
