package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chainbooks/chainbooks/internal/adapter/http/dto"
	"github.com/chainbooks/chainbooks/internal/domain"
)

// CheckpointStore is the read/delete surface the handler needs.
type CheckpointStore interface {
	Get(ctx context.Context, wallet string) (*domain.Checkpoint, error)
	Delete(ctx context.Context, wallet string) error
}

// CheckpointHandler exposes per-wallet resume state.
type CheckpointHandler struct {
	store CheckpointStore
}

// NewCheckpointHandler creates a new CheckpointHandler.
func NewCheckpointHandler(store CheckpointStore) *CheckpointHandler {
	return &CheckpointHandler{store: store}
}

// Get handles GET /api/v1/checkpoints/{wallet}.
func (h *CheckpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if err := domain.ValidateWalletAddress(wallet); err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet address", err.Error())
		return
	}

	cp, err := h.store.Get(r.Context(), wallet)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to load checkpoint", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckpointFromDomain(cp))
}

// Delete handles DELETE /api/v1/checkpoints/{wallet}. The next run for
// the wallet replays the full history.
func (h *CheckpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if err := domain.ValidateWalletAddress(wallet); err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet address", err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), wallet); err != nil {
		writeError(w, mapDomainError(err), "failed to delete checkpoint", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
