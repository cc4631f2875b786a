package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/db"
	"rubicon/flightlog/internal/db/repositories"
	"rubicon/flightlog/internal/logging"
	models "rubicon/flightlog/internal/models/gorm"
)

func newCheckpointStore(t *testing.T) (*CheckpointStore, *gorm.DB) {
	t.Helper()
	logging.SetLogger(zap.NewNop().Sugar())
	orm, err := db.Open(config.DatabaseOptions{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	return NewCheckpointStore(repositories.NewCheckpointRepo(orm), 5), orm
}

var journal = SourceFile{Name: "journal.xlsx", ByteSize: 1024, ContentHash: "abc123"}

func TestCheckpointOpenCreatesAtDefaultStartRow(t *testing.T) {
	store, _ := newCheckpointStore(t)
	ctx := context.Background()

	res, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Checkpoint)
	assert.NotEmpty(t, res.Checkpoint.ID)
	assert.Equal(t, 5, res.StartRow)
	assert.Equal(t, 4, res.Checkpoint.LastProcessedRow)
	assert.False(t, res.AlreadyCompleted)

	again, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Checkpoint.ID, again.Checkpoint.ID)
}

func TestCheckpointResumesAfterLastCommittedRow(t *testing.T) {
	store, _ := newCheckpointStore(t)
	ctx := context.Background()

	res, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	require.NoError(t, store.Advance(ctx, res.Checkpoint, 30, 12, 0))
	require.NoError(t, store.Advance(ctx, res.Checkpoint, 55, 8, 400))

	resumed, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	assert.Equal(t, 56, resumed.StartRow)
	assert.Equal(t, 20, resumed.Checkpoint.TotalCreated)
	assert.Equal(t, 400, resumed.Checkpoint.TotalRows)
	assert.False(t, resumed.AlreadyCompleted)
}

func TestCheckpointCompletedIsReported(t *testing.T) {
	store, _ := newCheckpointStore(t)
	ctx := context.Background()

	res, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, res.Checkpoint, 90, 120))
	assert.True(t, res.Checkpoint.Completed)

	again, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.Equal(t, 90, again.Checkpoint.LastProcessedRow)
	assert.Equal(t, 120, again.Checkpoint.TotalRows)
}

func TestCheckpointOverrideRewindsCompletedFile(t *testing.T) {
	store, _ := newCheckpointStore(t)
	ctx := context.Background()

	res, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, res.Checkpoint, 90, 120))

	start := 40
	rewound, err := store.Open(ctx, journal, &start)
	require.NoError(t, err)
	assert.Equal(t, 40, rewound.StartRow)
	assert.False(t, rewound.AlreadyCompleted)

	stored, err := store.Get(ctx, res.Checkpoint.ID)
	require.NoError(t, err)
	assert.Equal(t, 39, stored.LastProcessedRow)
	assert.False(t, stored.Completed)
}

func TestCheckpointOverrideOnNewFile(t *testing.T) {
	store, _ := newCheckpointStore(t)

	start := 12
	res, err := store.Open(context.Background(), journal, &start)
	require.NoError(t, err)
	assert.Equal(t, 12, res.StartRow)
	assert.Equal(t, 11, res.Checkpoint.LastProcessedRow)
}

func TestCheckpointSameNameDifferentContent(t *testing.T) {
	store, _ := newCheckpointStore(t)
	ctx := context.Background()

	first, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, first.Checkpoint, 90, 120))

	edited := journal
	edited.ContentHash = "def456"
	second, err := store.Open(ctx, edited, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Checkpoint.ID, second.Checkpoint.ID)
	assert.False(t, second.AlreadyCompleted)
	assert.Equal(t, 5, second.StartRow)
}

func TestCheckpointMissingStopsTheRun(t *testing.T) {
	store, orm := newCheckpointStore(t)
	ctx := context.Background()

	res, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)

	require.NoError(t, orm.Delete(&models.ImportCheckpoint{}, "id = ?", res.Checkpoint.ID).Error)

	err = store.Advance(ctx, res.Checkpoint, 30, 1, 0)
	assert.ErrorIs(t, err, ErrCheckpointMissing)
	err = store.Complete(ctx, res.Checkpoint, 30, 30)
	assert.ErrorIs(t, err, ErrCheckpointMissing)

	_, err = store.Get(ctx, res.Checkpoint.ID)
	assert.ErrorIs(t, err, ErrCheckpointMissing)
}

func TestCheckpointListNewestFirst(t *testing.T) {
	store, _ := newCheckpointStore(t)
	ctx := context.Background()

	a, err := store.Open(ctx, journal, nil)
	require.NoError(t, err)
	other := SourceFile{Name: "other.xlsx", ByteSize: 1, ContentHash: "zzz"}
	_, err = store.Open(ctx, other, nil)
	require.NoError(t, err)
	require.NoError(t, store.Advance(ctx, a.Checkpoint, 10, 1, 0))

	cps, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, a.Checkpoint.ID, cps[0].ID)
}
