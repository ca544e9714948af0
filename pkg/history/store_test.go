package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	return s
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	saved, err := s.Save(ctx, KindGroup, "银行", map[string]any{"stock_count": 2})
	require.NoError(t, err)
	assert.Len(t, saved.ID, 36)
	assert.Equal(t, KindGroup, saved.Kind)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "银行", got.GroupName)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))

	var payload map[string]int
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, map[string]int{"stock_count": 2}, payload)
}

func TestStore_GetMissing(t *testing.T) {
	_, err := newStore(t).Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.EqualError(t, err, "nope: report run not found")
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.Save(ctx, KindMarket, "", map[string]string{"n": "1"})
	require.NoError(t, err)
	second, err := s.Save(ctx, KindGroup, "白酒", map[string]string{"n": "2"})
	require.NoError(t, err)
	third, err := s.Save(ctx, KindMarket, "", map[string]string{"n": "3"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		kind  string
		limit int
		want  []string
	}{
		{"all kinds", "", 0, []string{third.ID, second.ID, first.ID}},
		{"market only", KindMarket, 0, []string{third.ID, first.ID}},
		{"limited", "", 2, []string{third.ID, second.ID}},
		{"unknown kind", "other", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.List(ctx, tt.kind, tt.limit)
			require.NoError(t, err)
			ids := []string{}
			for _, r := range runs {
				assert.Nil(t, r.Payload)
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_SaveUnmarshalable(t *testing.T) {
	_, err := newStore(t).Save(context.Background(), KindMarket, "", func() {})
	assert.ErrorContains(t, err, "failed to marshal report payload")
}
