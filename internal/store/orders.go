package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tqbridge/internal/model"
	apperrors "tqbridge/pkg/errors"

	"github.com/google/uuid"
)

// InsertOrder writes the initial orders row. It runs on the submitter's
// critical path before the broker call, so a failure here must abort the
// submission.
func (s *Store) InsertOrder(ctx context.Context, rec *model.OrderRecord) error {
	query := s.rebind(`INSERT INTO orders (
		order_id, exchange_order_id, exchange_id, instrument_id,
		direction, order_offset, volume_orign, volume_left, limit_price,
		status, is_dead, is_online, is_error, last_msg, trade_price,
		filled_quantity, portfolio_id, contract_code, exchange_trading_date,
		origin_timestamp, insert_date_time
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var limitPrice sql.NullFloat64
	if rec.LimitPrice != nil {
		limitPrice = sql.NullFloat64{Float64: *rec.LimitPrice, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.OrderID, rec.ExchangeOrderID, rec.ExchangeID, rec.InstrumentID,
		rec.Direction, rec.Offset, rec.VolumeOrign, rec.VolumeLeft, limitPrice,
		rec.Status, rec.IsDead, rec.IsOnline, rec.IsError, rec.LastMsg, rec.TradePrice,
		int64(0), rec.PortfolioID, rec.ContractCode, rec.ExchangeTradingDate,
		rec.OriginTimestamp, rec.InsertDateTime,
	)
	if err != nil {
		return fmt.Errorf("%w: insert order %s: %v", apperrors.ErrPersistenceFailure, rec.OrderID, err)
	}
	return nil
}

// ApplyOrderUpdate advances the orders row under the idempotent-monotonic
// rules: a CANCELED status never overwrites PARTIALLY_FILLED, and
// filled_quantity only moves up. Safe to replay on redelivery.
func (s *Store) ApplyOrderUpdate(ctx context.Context, upd *model.OrderUpdate) error {
	query := s.rebind(`UPDATE orders SET
		status = CASE
			WHEN status = 'PARTIALLY_FILLED' AND ? = 'CANCELED' THEN 'PARTIALLY_FILLED'
			ELSE ?
		END,
		filled_quantity = CASE
			WHEN ? > filled_quantity THEN ?
			ELSE filled_quantity
		END,
		volume_left = CASE
			WHEN ? < volume_left THEN ?
			ELSE volume_left
		END,
		updated_at = ?
		WHERE order_id = ?`)

	_, err := s.db.ExecContext(ctx, query,
		upd.Status, upd.Status,
		upd.FilledQuantity, upd.FilledQuantity,
		upd.VolumeLeft, upd.VolumeLeft,
		time.Now().UTC(), upd.OrderID,
	)
	if err != nil {
		return fmt.Errorf("%w: update order %s: %v", apperrors.ErrPersistenceFailure, upd.OrderID, err)
	}
	return nil
}

// InsertTrade appends one fill, deduplicated by trade_id.
func (s *Store) InsertTrade(ctx context.Context, trade *model.Trade) error {
	query := s.rebind(`INSERT INTO trades (
		trade_id, order_id, exchange_id, instrument_id, direction,
		trade_offset, price, volume, commission, trade_date_time, seqno
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (trade_id) DO NOTHING`)

	_, err := s.db.ExecContext(ctx, query,
		trade.TradeID, trade.OrderID, trade.ExchangeID, trade.InstrumentID,
		trade.Direction, trade.Offset, trade.Price, trade.Volume,
		trade.Commission, trade.TradeDateTime, trade.Seqno,
	)
	if err != nil {
		return fmt.Errorf("%w: insert trade %s: %v", apperrors.ErrPersistenceFailure, trade.TradeID, err)
	}
	return nil
}

// AppendOrderEvent records the raw update as an append-only audit row.
func (s *Store) AppendOrderEvent(ctx context.Context, upd *model.OrderUpdate) error {
	msg, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("%w: encode order event: %v", apperrors.ErrPersistenceFailure, err)
	}

	query := s.rebind(`INSERT INTO order_events (
		event_id, order_id, event_type, msg, portfolio_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(), upd.OrderID, upd.EventType, string(msg),
		upd.PortfolioID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: append order event %s: %v", apperrors.ErrPersistenceFailure, upd.OrderID, err)
	}
	return nil
}

// UniverseSymbols returns the distinct broker symbols for the current-main
// and next-main contracts of every tracked product.
func (s *Store) UniverseSymbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT c.tqsdk_code
		FROM md_product_info p
		JOIN md_contract_info c ON p.current_main_contract_code = c.contract_code
		WHERE p.current_main_contract_code IS NOT NULL
		  AND c.tqsdk_code IS NOT NULL
		UNION
		SELECT DISTINCT c.tqsdk_code
		FROM md_product_info p
		JOIN md_contract_info c ON p.next_main_contract_code = c.contract_code
		WHERE p.next_main_contract_code IS NOT NULL
		  AND c.tqsdk_code IS NOT NULL`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query universe: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan universe row: %w", err)
		}
		if code != "" {
			symbols = append(symbols, code)
		}
	}
	return symbols, rows.Err()
}
