package main

import (
	"net/http"

	"github.com/Simplici0/tradedesk/internal/pricing"
	"github.com/Simplici0/tradedesk/internal/store"
)

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.stores.Products.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	product, err := s.stores.Products.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type productQuoteRequest struct {
	Countries []string            `json:"countries"`
	Flags     pricing.MarginFlags `json:"marginFlags"`
	Selection map[string][]int64  `json:"selection"`
	Save      bool                `json:"save"`
}

type quoteResponse struct {
	Prices []pricing.CountryPrice `json:"countryDeliverables"`
	Saved  bool                   `json:"saved,omitempty"`
}

// handleProductQuote reprices a committed product for manual review and can
// store the result.
func (s *server) handleProductQuote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req productQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	product, err := s.stores.Products.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prices, err := s.stores.Quote(r.Context(), store.QuoteRequest{
		Product:   product.ProductSnapshot,
		Countries: req.Countries,
		Flags:     req.Flags,
		Selection: req.Selection,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Save {
		if err := s.stores.Products.ReplacePrices(r.Context(), id, prices); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, quoteResponse{Prices: prices, Saved: req.Save})
}

// handleQuote prices an unsaved seller submission.
func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req store.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	prices, err := s.stores.Quote(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Prices: prices})
}
