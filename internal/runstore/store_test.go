package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/engine"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mean := 350 * time.Millisecond
	run := FromSummary("setup_data_call", "cli", "3", engine.Summary{
		Family:  engine.FamilyDataCall,
		Total:   3,
		Success: 1,
		Failure: 1,
		Mean:    &mean,
	}, "")
	require.NoError(t, s.Save(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "setup_data_call", got.Query)
	assert.Equal(t, "data_call", got.Family)
	assert.Equal(t, 3, got.Total)
	require.NotNil(t, got.MeanSeconds)
	assert.InDelta(t, 0.35, *got.MeanSeconds, 1e-9)
	assert.Empty(t, got.Violation)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveKeepsNullMean(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	run := FromSummary("ims_reg", "http", "3", engine.Summary{Family: engine.FamilyImsReg}, "invalid slot: 2")
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MeanSeconds)
	assert.Equal(t, "invalid slot: 2", got.Violation)
}

func TestList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	queries := []string{"mms", "ims_reg", "mms"}
	for i, q := range queries {
		run := &Run{Query: q, Source: "cli", Family: q, TaxonomyVersion: "3", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Save(ctx, run))
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	mms, err := s.List(ctx, "mms", 10)
	require.NoError(t, err)
	assert.Len(t, mms, 2)

	one, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "mms", one[0].Query)
}
