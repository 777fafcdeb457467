package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohort-bank/db"
	"cohort-bank/models"
	"cohort-bank/repository"
)

func newRepo(t *testing.T) *repository.CheckpointRepository {
	t.Helper()
	ldb, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })
	return repository.NewCheckpointRepository(ldb)
}

func TestLatestCheckpointPerOwner(t *testing.T) {
	repo := newRepo(t)

	latest, err := repo.GetLatestCheckpoint("alice")
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, cp := range []*models.Checkpoint{
		{ID: "a0", Owner: "alice", Epoch: 0, Balance: 100},
		{ID: "a2", Owner: "alice", Epoch: 2, Balance: 70},
		{ID: "a1", Owner: "alice", Epoch: 1, Balance: 90},
		{ID: "b9", Owner: "alicent", Epoch: 9, Balance: 1},
		{ID: "b0", Owner: "bob", Epoch: 5, Balance: 80},
	} {
		require.NoError(t, repo.PutCheckpoint(cp))
	}

	latest, err = repo.GetLatestCheckpoint("alice")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "a2", latest.ID)
	assert.Equal(t, int64(70), latest.Balance)

	all, err := repo.GetCheckpoints("alice")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a0", all[0].ID)
	assert.Equal(t, "a2", all[2].ID)
}

func TestEpochsOrderNumerically(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.PutCheckpoint(&models.Checkpoint{ID: "nine", Owner: "bob", Epoch: 9}))
	require.NoError(t, repo.PutCheckpoint(&models.Checkpoint{ID: "ten", Owner: "bob", Epoch: 10}))

	latest, err := repo.GetLatestCheckpoint("bob")
	require.NoError(t, err)
	assert.Equal(t, "ten", latest.ID)
}
