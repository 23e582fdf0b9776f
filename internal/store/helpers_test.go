package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartserve/internal/clock"
	"smartserve/internal/models"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func createTestStore(t *testing.T) (*GormStore, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	s, err := OpenGorm("sqlite3", filepath.Join(t.TempDir(), "test.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func testItem(id string, stock int) models.MenuItem {
	return models.MenuItem{
		ID:       id,
		Name:     "Item " + id,
		Category: "Drinks",
		Price:    300,
		Stock:    stock,
		FoodCost: 50,
		Modifiers: []models.Modifier{
			{Label: "Sugar", Kind: models.ModifierSingle, Options: []string{"No Sugar", "1 Teaspoon"}},
		},
		Tags: []string{"quick"},
	}
}

func waitSnapshot[T any](t *testing.T, sub *Subscription[T]) Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot[T]{}
}
