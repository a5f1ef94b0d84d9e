package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
	apperrors "tqbridge/pkg/errors"
)

// PositionHandler writes position snapshots from the bus into the cache.
// This is the legacy cache path running in parallel with the reconciler; both
// write full snapshots, so the last writer wins harmlessly.
type PositionHandler struct {
	cache       core.IPositionCache
	positionTTL time.Duration
	logger      core.ILogger
}

// NewPositionHandler builds the position update sink.
func NewPositionHandler(cache core.IPositionCache, positionTTL time.Duration, logger core.ILogger) *PositionHandler {
	return &PositionHandler{
		cache:       cache,
		positionTTL: positionTTL,
		logger:      logger.WithField("component", "position_handler"),
	}
}

func (h *PositionHandler) Handle(ctx context.Context, body []byte) error {
	var upd model.PositionUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return errors.Join(apperrors.ErrDecodeFailure, err)
	}
	if upd.Symbol == "" {
		return errors.Join(apperrors.ErrDecodeFailure, errors.New("position update without symbol"))
	}

	pos := model.ZeroPosition()
	if upd.Position != nil {
		pos = *upd.Position
	}

	if err := h.cache.SetPosition(ctx, upd.PortfolioID, upd.Symbol, pos, h.positionTTL); err != nil {
		return err
	}
	h.logger.Debug("position snapshot cached", "symbol", upd.Symbol, "pos", pos.Pos)
	return nil
}
