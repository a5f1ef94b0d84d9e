package monitor

import (
	"encoding/json"
	"testing"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/mock"
	"tqbridge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePositionUpdates(t *testing.T, pub *mock.Publisher) []model.PositionUpdate {
	t.Helper()
	var out []model.PositionUpdate
	for _, msg := range pub.ByRoutingKey(core.RoutingKeyPositionUpdates) {
		var upd model.PositionUpdate
		require.NoError(t, json.Unmarshal(msg.Body, &upd))
		out = append(out, upd)
	}
	return out
}

func TestPositionMonitorPublishesAndCachesChanges(t *testing.T) {
	session := mock.NewBrokerSession()
	pub := mock.NewPublisher()
	cache := mock.NewPositionCache()
	m := NewPositionMonitor("P1", NewEventPublisher(pub, mock.NewLogger()), cache, 15*time.Second, mock.NewLogger())
	require.NoError(t, m.InitWorker(session))

	pos := model.FullPosition{
		PosLong: 3, Pos: 3, PosLongToday: 1, PosLongHis: 2,
	}
	session.SetPosition("SHFE.rb2505", pos)

	m.OnDrain(true)
	// Unchanged position publishes nothing new.
	m.OnDrain(true)
	m.CleanupWorker()

	updates := decodePositionUpdates(t, pub)
	require.Len(t, updates, 1)
	assert.Equal(t, "SHFE.rb2505", updates[0].Symbol)
	require.NotNil(t, updates[0].Position)
	assert.Equal(t, pos, *updates[0].Position)

	assert.True(t, cache.Has("P1", "SHFE.rb2505"))
	assert.Equal(t, 15*time.Second, cache.TTL("P1", "SHFE.rb2505"))
}

func TestPositionMonitorEmitsZeroEventWhenPositionDisappears(t *testing.T) {
	session := mock.NewBrokerSession()
	pub := mock.NewPublisher()
	cache := mock.NewPositionCache()
	m := NewPositionMonitor("P1", NewEventPublisher(pub, mock.NewLogger()), cache, 15*time.Second, mock.NewLogger())
	require.NoError(t, m.InitWorker(session))

	session.SetPosition("SHFE.rb2505", model.FullPosition{PosLong: 2, Pos: 2, PosLongToday: 2})
	m.OnDrain(true)

	session.RemovePosition("SHFE.rb2505")
	m.OnDrain(true)
	m.CleanupWorker()

	updates := decodePositionUpdates(t, pub)
	require.Len(t, updates, 2)
	require.NotNil(t, updates[1].Position)
	assert.True(t, updates[1].Position.IsZero())

	cached, err := cache.GetPosition(t.Context(), "P1", "SHFE.rb2505")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.IsZero())
}

func TestPositionSnapshotRoundTrip(t *testing.T) {
	pos := model.FullPosition{
		PosLong: 7, PosShort: 1, Pos: 6,
		PosLongToday: 3, PosLongHis: 4, PosShortToday: 0, PosShortHis: 1,
	}

	data, err := json.Marshal(pos)
	require.NoError(t, err)

	var decoded model.FullPosition
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, pos, decoded)
	assert.True(t, decoded.Consistent())
}
