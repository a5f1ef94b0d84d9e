package universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"tqbridge/internal/mock"

	"github.com/stretchr/testify/assert"
)

func TestLoadCachesBetweenRefreshes(t *testing.T) {
	store := mock.NewOrderStore()
	store.Universe = []string{"SHFE.rb2505", "INE.sc2506"}

	l := NewLoader(store, 30*time.Minute, mock.NewLogger())
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	assert.Equal(t, []string{"SHFE.rb2505", "INE.sc2506"}, l.Load(context.Background()))

	// Within the refresh window the store is not consulted again.
	store.Universe = []string{"SHFE.rb2505"}
	l.now = func() time.Time { return base.Add(10 * time.Minute) }
	assert.Equal(t, []string{"SHFE.rb2505", "INE.sc2506"}, l.Load(context.Background()))

	// Past the window the list is reloaded.
	l.now = func() time.Time { return base.Add(31 * time.Minute) }
	assert.Equal(t, []string{"SHFE.rb2505"}, l.Load(context.Background()))
}

func TestLoadKeepsStaleCacheOnError(t *testing.T) {
	store := mock.NewOrderStore()
	store.Universe = []string{"SHFE.rb2505"}

	l := NewLoader(store, time.Minute, mock.NewLogger())
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	assert.Len(t, l.Load(context.Background()), 1)

	store.UniverseErr = errors.New("connection refused")
	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, []string{"SHFE.rb2505"}, l.Load(context.Background()))
}

func TestForceRefresh(t *testing.T) {
	store := mock.NewOrderStore()
	store.Universe = []string{"SHFE.rb2505"}

	l := NewLoader(store, time.Hour, mock.NewLogger())
	assert.Len(t, l.Load(context.Background()), 1)

	store.Universe = []string{"SHFE.rb2505", "INE.sc2506"}
	l.ForceRefresh()
	assert.Len(t, l.Load(context.Background()), 2)
}
