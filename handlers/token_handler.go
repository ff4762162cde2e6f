package handlers

import (
	"net/http"

	"github.com/arbitragevault/backend/services/tokenguard"
	"github.com/arbitragevault/backend/utils"
	"go.uber.org/zap"
)

// TokenHandler exposes the token budget status for the dashboard
type TokenHandler struct {
	guard  *tokenguard.Guard
	logger *zap.Logger
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(guard *tokenguard.Guard, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		guard:  guard,
		logger: logger,
	}
}

// HandleStatus handles GET /api/v1/tokens
// Reports the current balance, refill rate and breaker state
func (h *TokenHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.guard.Snapshot())
}
