package repository

import (
	"cohort-bank/db"
	"cohort-bank/models"
	"encoding/json"
	"fmt"
)

const checkpointPrefix = "checkpoint:"

// It abstracts the snapshot storage from the customer protocol logic
type CheckpointRepositoryInterface interface {
	PutCheckpoint(cp *models.Checkpoint) error
	GetLatestCheckpoint(owner string) (*models.Checkpoint, error)
	GetCheckpoints(owner string) ([]*models.Checkpoint, error)
}

// CheckpointRepository implements the CheckpointRepositoryInterface using LevelDB as the storage backend
type CheckpointRepository struct {
	db *db.LevelDB
}

// NewCheckpointRepository creates and returns a new CheckpointRepository instance
func NewCheckpointRepository(db *db.LevelDB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Keys sort by owner then epoch, so the last key under an owner is its latest snapshot
func checkpointKey(owner string, epoch uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", checkpointPrefix, owner, epoch))
}

func ownerPrefix(owner string) []byte {
	return []byte(checkpointPrefix + owner + ":")
}

// PutCheckpoint stores a snapshot of the owner's state
func (r *CheckpointRepository) PutCheckpoint(cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return r.db.Put(checkpointKey(cp.Owner, cp.Epoch), data)
}

// Retrieves the most recent snapshot of the owner, nil if none was ever written
func (r *CheckpointRepository) GetLatestCheckpoint(owner string) (*models.Checkpoint, error) {
	iter := r.db.NewIterator(ownerPrefix(owner))
	defer iter.Release()

	if !iter.Last() {
		return nil, iter.Error()
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(iter.Value(), &cp); err != nil {
		return nil, err
	}
	return &cp, iter.Error()
}

// GetCheckpoints retrieves every snapshot of the owner, oldest first
func (r *CheckpointRepository) GetCheckpoints(owner string) ([]*models.Checkpoint, error) {
	iter := r.db.NewIterator(ownerPrefix(owner))
	defer iter.Release()

	var cps []*models.Checkpoint
	for iter.Next() {
		var cp models.Checkpoint
		if err := json.Unmarshal(iter.Value(), &cp); err != nil {
			return nil, err
		}
		cps = append(cps, &cp)
	}
	return cps, iter.Error()
}
