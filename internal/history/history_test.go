package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, kind := range []string{"transfer", "split", "merge"} {
		require.NoError(t, s.Record(ctx, Entry{
			Wallet:    "main",
			Kind:      kind,
			Argv:      []string{kind, "--config", "/w/main/.config"},
			ExitCode:  i,
			Output:    "ok " + kind,
			Duration:  1500 * time.Millisecond,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "merge", entries[0].Kind)
	assert.Equal(t, "split", entries[1].Kind)
	assert.Equal(t, []string{"merge", "--config", "/w/main/.config"}, entries[0].Argv)
	assert.Equal(t, 2, entries[0].ExitCode)
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
	assert.WithinDuration(t, base.Add(2*time.Minute), entries[0].CreatedAt, time.Millisecond)
}

func TestForWalletAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.Record(ctx, Entry{ID: id, Wallet: "alt", Kind: "transfer", Argv: []string{"transfer"}}))
	require.NoError(t, s.Record(ctx, Entry{Wallet: "main", Kind: "split", Argv: []string{"split"}}))

	entries, err := s.ForWallet(ctx, "alt", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alt", got.Wallet)

	missing, err := s.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOutputIsTruncated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.Record(ctx, Entry{ID: id, Wallet: "main", Kind: "coins", Output: strings.Repeat("x", maxOutput+10)}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Output, maxOutput)
	assert.Nil(t, got.Argv)
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{Wallet: "main", Kind: "merge"}))
	version, err := SchemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), version)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Record(context.Background(), Entry{}), ErrClosed)
	_, err := s.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}
