package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"petsos/barcode"
)

const (
	// maxBatch caps how many codes one request may generate.
	maxBatch = 50
	// maxRetries is how many exhausted Generate calls a request tolerates.
	maxRetries = 3
)

type BarcodeHandler struct {
	gen    *barcode.Generator
	logger *logrus.Logger
}

func NewBarcodeHandler(gen *barcode.Generator, logger *logrus.Logger) *BarcodeHandler {
	return &BarcodeHandler{
		gen:    gen,
		logger: logger,
	}
}

type GenerateBarcodesRequest struct {
	Species string `json:"species"`
	Count   int    `json:"count,omitempty"`
}

// Generate issues count (default 1) codes for the requested species.
func (h *BarcodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateBarcodesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 0 || req.Count > maxBatch {
		writeError(w, "count must be between 1 and 50", http.StatusBadRequest)
		return
	}

	species, err := barcode.ParseSpecies(req.Species)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	codes := make([]string, 0, req.Count)
	for failures := 0; len(codes) < req.Count; {
		code, err := h.gen.Generate(species)
		if err != nil {
			if failures++; failures > maxRetries {
				h.logger.WithError(err).WithField("species", species).Error("❌ Barcode generation failed")
				writeError(w, "Failed to generate barcodes", http.StatusInternalServerError)
				return
			}
			continue
		}
		codes = append(codes, code)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"species": species,
		"codes":   codes,
	})
}

// Validate checks the code query parameter.
func (h *BarcodeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.URL.Query().Get("code")
	if err := barcode.Validate(code); err != nil {
		writeJSON(w, statusFor(err), map[string]interface{}{
			"code":  code,
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":  code,
		"valid": true,
	})
}
