package submitter

import (
	"testing"

	"tqbridge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeRequest(symbol, direction string, volume int64) *model.OrderRequest {
	return &model.OrderRequest{
		Action:    model.ActionSubmit,
		Symbol:    symbol,
		Direction: direction,
		Offset:    model.OffsetClose,
		Volume:    volume,
		OrderID:   "ord-1",
	}
}

func TestSplitCloseOrderSellSplitsLongSide(t *testing.T) {
	req := closeRequest("SHFE.rb2505", model.DirectionSell, 5)
	pos := &model.FullPosition{
		PosLong: 7, Pos: 7, PosLongToday: 3, PosLongHis: 4,
	}

	children := SplitCloseOrder(req, pos)
	require.Len(t, children, 2)

	assert.Equal(t, "ord-1_closetoday", children[0].OrderID)
	assert.Equal(t, model.OffsetCloseToday, children[0].Offset)
	assert.Equal(t, int64(3), children[0].Volume)

	assert.Equal(t, "ord-1_close", children[1].OrderID)
	assert.Equal(t, model.OffsetClose, children[1].Offset)
	assert.Equal(t, int64(2), children[1].Volume)
}

func TestSplitCloseOrderBuyUsesShortSide(t *testing.T) {
	req := closeRequest("INE.sc2506", model.DirectionBuy, 4)
	pos := &model.FullPosition{
		PosShort: 4, Pos: -4, PosShortToday: 1, PosShortHis: 3,
	}

	children := SplitCloseOrder(req, pos)
	require.Len(t, children, 2)
	assert.Equal(t, int64(1), children[0].Volume)
	assert.Equal(t, int64(3), children[1].Volume)
}

func TestSplitCloseOrderTodayCoversAll(t *testing.T) {
	req := closeRequest("SHFE.rb2505", model.DirectionSell, 2)
	pos := &model.FullPosition{PosLong: 5, Pos: 5, PosLongToday: 5}

	children := SplitCloseOrder(req, pos)
	require.Len(t, children, 1)
	assert.Equal(t, model.OffsetCloseToday, children[0].Offset)
	assert.Equal(t, int64(2), children[0].Volume)
}

func TestSplitCloseOrderNoCachedPositionPassesThrough(t *testing.T) {
	req := closeRequest("SHFE.rb2505", model.DirectionSell, 5)

	children := SplitCloseOrder(req, nil)
	require.Len(t, children, 1)
	assert.Same(t, req, children[0])
	assert.Equal(t, model.OffsetClose, children[0].Offset)
}

func TestSplitCloseOrderOnlyForCloseTodayExchanges(t *testing.T) {
	req := closeRequest("DCE.m2509", model.DirectionSell, 5)
	pos := &model.FullPosition{PosLong: 5, Pos: 5, PosLongToday: 5}

	children := SplitCloseOrder(req, pos)
	require.Len(t, children, 1)
	assert.Same(t, req, children[0])
}

func TestSplitCloseOrderFlatPositionPassesThrough(t *testing.T) {
	req := closeRequest("SHFE.rb2505", model.DirectionSell, 5)
	pos := &model.FullPosition{}

	children := SplitCloseOrder(req, pos)
	require.Len(t, children, 1)
	assert.Same(t, req, children[0])
}
