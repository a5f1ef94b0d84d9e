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

// AccountHandler writes account snapshots from the bus into the cache.
type AccountHandler struct {
	cache      core.IPositionCache
	accountTTL time.Duration
	logger     core.ILogger
}

// NewAccountHandler builds the account update sink.
func NewAccountHandler(cache core.IPositionCache, accountTTL time.Duration, logger core.ILogger) *AccountHandler {
	return &AccountHandler{
		cache:      cache,
		accountTTL: accountTTL,
		logger:     logger.WithField("component", "account_handler"),
	}
}

func (h *AccountHandler) Handle(ctx context.Context, body []byte) error {
	var upd model.AccountUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return errors.Join(apperrors.ErrDecodeFailure, err)
	}
	if upd.PortfolioID == "" {
		return errors.Join(apperrors.ErrDecodeFailure, errors.New("account update without portfolio_id"))
	}

	if err := h.cache.SetAccount(ctx, upd.PortfolioID, upd.Snapshot(), h.accountTTL); err != nil {
		return err
	}
	h.logger.Debug("account snapshot cached", "portfolio_id", upd.PortfolioID, "balance", upd.Balance)
	return nil
}
