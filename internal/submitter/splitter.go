// Package submitter implements the order submit pipeline: validation, age and
// trading-session checks, close-today splitting, DB persistence and the
// broker insert.
package submitter

import (
	"tqbridge/internal/core"
	"tqbridge/internal/model"
)

// Child order id suffixes produced by the close split.
const (
	suffixCloseToday = "_closetoday"
	suffixClose      = "_close"
)

// SplitCloseOrder splits a CLOSE request for a close-today exchange into up
// to two child orders based on the cached position breakdown: a CLOSETODAY
// child for the same-day quantity first, then a CLOSE child for the
// historical remainder. A SELL closes the long side, a BUY closes the short
// side. With no cached position the original request passes through
// unchanged.
func SplitCloseOrder(req *model.OrderRequest, pos *model.FullPosition) []*model.OrderRequest {
	if req.Offset != model.OffsetClose || !core.CloseTodayExchanges[req.ExchangeID()] {
		return []*model.OrderRequest{req}
	}
	if pos == nil {
		return []*model.OrderRequest{req}
	}

	var today, his int64
	if req.Direction == model.DirectionSell {
		today, his = pos.PosLongToday, pos.PosLongHis
	} else {
		today, his = pos.PosShortToday, pos.PosShortHis
	}

	var children []*model.OrderRequest
	remaining := req.Volume

	if qty := min(today, remaining); qty > 0 {
		children = append(children, childOrder(req, suffixCloseToday, model.OffsetCloseToday, qty))
		remaining -= qty
	}
	if qty := min(his, remaining); qty > 0 {
		children = append(children, childOrder(req, suffixClose, model.OffsetClose, qty))
	}

	if len(children) == 0 {
		return []*model.OrderRequest{req}
	}
	return children
}

func childOrder(parent *model.OrderRequest, suffix, offset string, volume int64) *model.OrderRequest {
	child := *parent
	child.OrderID = parent.OrderID + suffix
	child.Offset = offset
	child.Volume = volume
	return &child
}
