package broker

import (
	"testing"

	"tqbridge/internal/config"
	"tqbridge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDiff(t *testing.T) {
	dst := map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"orders": map[string]interface{}{
					"A": map[string]interface{}{"status": "ALIVE", "volume_left": float64(2)},
				},
			},
		},
	}

	mergeDiff(dst, map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"orders": map[string]interface{}{
					"A": map[string]interface{}{"volume_left": float64(1)},
				},
			},
		},
	})

	row := getMap(dst, "trade", "u1", "orders", "A")
	require.NotNil(t, row)
	assert.Equal(t, "ALIVE", getString(row, "status"))
	assert.Equal(t, int64(1), getInt(row, "volume_left"))
}

func TestMergeDiffNullDeletesKey(t *testing.T) {
	dst := map[string]interface{}{"a": "x", "b": "y"}
	mergeDiff(dst, map[string]interface{}{"a": nil})
	assert.NotContains(t, dst, "a")
	assert.Contains(t, dst, "b")
}

func newTestSession() *Session {
	return &Session{
		cfg:       config.TQConfig{AccountID: "u1"},
		mirror:    make(map[string]interface{}),
		orders:    make(map[string]*model.Order),
		positions: make(map[string]*model.FullPosition),
		trades:    make(map[string]*model.Trade),
	}
}

func TestProjectOrdersMutatesInPlace(t *testing.T) {
	s := newTestSession()
	mergeDiff(s.mirror, map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"orders": map[string]interface{}{
					"A": map[string]interface{}{
						"status":       "ALIVE",
						"direction":    "SELL",
						"offset":       "OPEN",
						"volume_orign": float64(2),
						"volume_left":  float64(2),
					},
				},
			},
		},
	})
	s.project()

	order := s.Orders()["A"]
	require.NotNil(t, order)
	assert.Equal(t, model.StatusAlive, order.Status)
	assert.Equal(t, int64(2), order.VolumeLeft)

	// A later diff updates the same row object.
	mergeDiff(s.mirror, map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"orders": map[string]interface{}{
					"A": map[string]interface{}{"status": "FINISHED", "volume_left": float64(0)},
				},
			},
		},
	})
	s.project()

	assert.Same(t, order, s.Orders()["A"])
	assert.Equal(t, model.StatusFinished, order.Status)
	assert.Equal(t, int64(0), order.VolumeLeft)
	assert.True(t, order.IsDead)
}

func TestProjectPositionsAndAccount(t *testing.T) {
	s := newTestSession()
	mergeDiff(s.mirror, map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"positions": map[string]interface{}{
					"SHFE.rb2505": map[string]interface{}{
						"pos_long_today":  float64(3),
						"pos_long_his":    float64(4),
						"pos_short_today": float64(0),
						"pos_short_his":   float64(1),
					},
				},
				"accounts": map[string]interface{}{
					"CNY": map[string]interface{}{
						"balance":         float64(100000),
						"available":       float64(80000),
						"margin":          float64(20000),
						"risk_ratio":      float64(0.2),
						"position_profit": float64(150),
					},
				},
			},
		},
	})
	s.project()

	pos := s.Positions()["SHFE.rb2505"]
	require.NotNil(t, pos)
	assert.Equal(t, int64(7), pos.PosLong)
	assert.Equal(t, int64(1), pos.PosShort)
	assert.Equal(t, int64(6), pos.Pos)
	assert.True(t, pos.Consistent())

	acc := s.Account()
	assert.Equal(t, float64(100000), acc.Balance)
	assert.Equal(t, float64(0.2), acc.RiskRatio)
}

func TestProjectDropsFlatPositions(t *testing.T) {
	s := newTestSession()
	mergeDiff(s.mirror, map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"positions": map[string]interface{}{
					"SHFE.rb2505": map[string]interface{}{
						"pos_long_today": float64(2),
					},
				},
			},
		},
	})
	s.project()
	require.Contains(t, s.Positions(), "SHFE.rb2505")

	mergeDiff(s.mirror, map[string]interface{}{
		"trade": map[string]interface{}{
			"u1": map[string]interface{}{
				"positions": map[string]interface{}{
					"SHFE.rb2505": map[string]interface{}{
						"pos_long_today": float64(0),
					},
				},
			},
		},
	})
	s.project()
	assert.NotContains(t, s.Positions(), "SHFE.rb2505")
}
