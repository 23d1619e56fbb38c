package handlers

import (
	"log/slog"
	"net/http"

	"empires-server/internal/catalog"
	"empires-server/internal/shared/errors"
	"empires-server/internal/shared/response"
)

type CatalogHandler struct {
	provider *catalog.Provider
}

func NewCatalogHandler(provider *catalog.Provider) *CatalogHandler {
	return &CatalogHandler{provider: provider}
}

// List serves every catalog entry, keyed for client-side lookup.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "list_catalog")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	specs := make(map[catalog.Key]*catalog.Spec)
	for _, key := range h.provider.Keys() {
		if spec, ok := h.provider.Get(key); ok {
			specs[key] = spec
		}
	}

	response.Success(w, http.StatusOK, specs)
}

// Get serves one catalog entry.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_catalog_entry")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	key := catalog.Key(r.PathValue("key"))
	if key == "" {
		response.Error(w, r, logger, errors.Validation("catalog key is required"))
		return
	}

	spec, ok := h.provider.Get(key)
	if !ok {
		response.Error(w, r, logger, errors.NotFoundf("catalog entry %s not found", key))
		return
	}

	response.Success(w, http.StatusOK, spec)
}
