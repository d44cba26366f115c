package handler

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// PositionReader is the read side of the live-position book.
type PositionReader interface {
	List() []domain.Position
	Get(token common.Address) (domain.Position, bool)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionReader
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler over the given book.
func NewPositionHandler(positions PositionReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger.With(slog.String("component", "api")),
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns every live position, oldest first.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.positions.List()
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns the live position for one token.
// GET /api/positions/{token}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("token")
	token, err := domain.ParseToken(raw)
	if err != nil {
		h.logger.DebugContext(r.Context(), "bad token in path",
			slog.String("token", raw),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid token address")
		return
	}
	p, ok := h.positions.Get(token)
	if !ok {
		writeError(w, http.StatusNotFound, "no live position for token")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
