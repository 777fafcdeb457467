package customer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cohort-bank/models"
)

// checkpointRecord is the state of one checkpoint negotiation.
type checkpointRecord struct {
	id         string
	cohort     []string // peers the negotiation propagates to
	status     models.CheckpointStatus
	willing    bool
	committing bool // make-permanent already propagating
	aborting   bool // undo already propagating
}

func newCheckpointRecord() *checkpointRecord {
	return &checkpointRecord{status: models.CheckpointStable}
}

// Checkpoint takes a cohort-wide consistent checkpoint. Every peer this
// customer heard from since the last checkpoint is asked to take a tentative
// checkpoint, recursively; if all agree the checkpoint is made permanent and
// a snapshot is written, otherwise every tentative checkpoint is undone.
func (c *Customer) Checkpoint(ctx context.Context) (*models.Checkpoint, error) {
	c.mux.Lock()
	if err := c.initializedLocked(); err != nil {
		c.mux.Unlock()
		return nil, err
	}
	if c.ckpt.status == models.CheckpointTentative {
		id := c.ckpt.id
		c.mux.Unlock()
		return nil, models.Errorf(models.KindCheckpointConflict, "checkpoint %s in progress", id)
	}
	self := c.self.Name
	cohort := c.labels.CheckCohort()
	claims := c.lastRecvLocked(cohort)
	id := uuid.NewString()
	c.ckpt = &checkpointRecord{id: id, cohort: cohort, status: models.CheckpointTentative, willing: true}
	c.mux.Unlock()

	log := c.log.With(zap.String("checkpoint_id", id))
	log.Info("Checkpoint initiated", zap.Strings("check_cohort", cohort))

	err := c.broadcast(ctx, cohort, func(peer string) models.Message {
		return models.Message{Command: models.CmdTakeTentative, Sender: self, Count: claims[peer], ID: id}
	})
	if err != nil {
		c.undoCheckpoint(ctx, id)
		log.Warn("Tentative checkpoint rejected", zap.Error(err))
		return nil, models.Errorf(models.KindTentativeRejected, "%v", err)
	}

	c.mux.Lock()
	c.ckpt.committing = true
	c.mux.Unlock()

	err = c.broadcast(ctx, cohort, func(string) models.Message {
		return models.Message{Command: models.CmdMakePermanent, ID: id}
	})
	if err != nil {
		// Peers that never saw make-permanent would otherwise stay tentative.
		c.undoCheckpoint(ctx, id)
		log.Error("Checkpoint commit failed", zap.Error(err))
		return nil, models.Errorf(models.KindCommitFailed, "%v", err)
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.ckpt.id != id {
		return nil, models.Errorf(models.KindCommitFailed, "checkpoint %s superseded", id)
	}
	return c.commitCheckpointLocked(id)
}

func (c *Customer) lastRecvLocked(peers []string) map[string]int64 {
	claims := make(map[string]int64, len(peers))
	for _, p := range peers {
		l, _ := c.labels.Label(p)
		claims[p] = l.LastRecv
	}
	return claims
}

// commitCheckpointLocked makes the tentative checkpoint permanent: the
// snapshot is written and a new epoch begins. Transfers already withdrawn
// finish first, and new ones wait until the epoch has turned.
func (c *Customer) commitCheckpointLocked(id string) (*models.Checkpoint, error) {
	c.holds++
	c.waitSendsLocked()
	c.holds--
	c.idle.Broadcast()
	if c.ckpt.id != id || c.ckpt.status != models.CheckpointTentative {
		return nil, models.Errorf(models.KindCommitFailed, "checkpoint %s superseded", id)
	}

	cp, err := c.writeSnapshotLocked(id)
	if err != nil {
		return nil, models.Errorf(models.KindCommitFailed, "persist snapshot: %v", err)
	}
	c.ckpt.status = models.CheckpointPermanent
	c.hist.committed = id
	c.resetEpochLocked()
	c.log.Info("Checkpoint permanent", zap.String("checkpoint_id", id))
	return cp, nil
}

// undoCheckpoint propagates an undo for id and discards the local record.
func (c *Customer) undoCheckpoint(ctx context.Context, id string) {
	c.mux.Lock()
	if c.ckpt.id != id || c.ckpt.aborting {
		c.mux.Unlock()
		return
	}
	c.ckpt.aborting = true
	cohort := c.ckpt.cohort
	c.mux.Unlock()

	if err := c.broadcast(ctx, cohort, func(string) models.Message {
		return models.Message{Command: models.CmdUndoTentative, ID: id}
	}); err != nil {
		c.log.Warn("Undo not acknowledged by every peer", zap.String("checkpoint_id", id), zap.Error(err))
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.ckpt.id == id {
		c.ckpt.status = models.CheckpointAborted
		c.ckpt = newCheckpointRecord()
		c.hist.aborted = id
	}
}

// recvTakeTentative answers take-a-tentative-checkpoint from an initiator.
func (c *Customer) recvTakeTentative(ctx context.Context, msg models.Message) error {
	c.mux.Lock()
	if err := c.initializedLocked(); err != nil {
		c.mux.Unlock()
		return err
	}
	if c.ckpt.status == models.CheckpointTentative {
		id := c.ckpt.id
		c.mux.Unlock()
		if id == msg.ID {
			return nil
		}
		return models.Errorf(models.KindCheckpointConflict, "checkpoint %s in progress", id)
	}
	if c.hist.committed == msg.ID {
		c.mux.Unlock()
		return nil
	}
	if !c.labels.ConsistentCheckpointClaim(msg.Sender, msg.Count) {
		l, _ := c.labels.Label(msg.Sender)
		c.mux.Unlock()
		return models.Errorf(models.KindCheckpointNotConsistent,
			"%s claims last_recv %d, base %d first_sent %d", msg.Sender, msg.Count, l.Base, l.FirstSent)
	}
	self := c.self.Name
	cohort := c.labels.CheckCohort()
	claims := c.lastRecvLocked(cohort)
	c.ckpt = &checkpointRecord{id: msg.ID, cohort: cohort, status: models.CheckpointTentative, willing: true}
	c.mux.Unlock()

	c.log.Info("Tentative checkpoint taken",
		zap.String("checkpoint_id", msg.ID), zap.String("initiator", msg.Sender), zap.Strings("check_cohort", cohort))

	err := c.broadcast(ctx, cohort, func(peer string) models.Message {
		return models.Message{Command: models.CmdTakeTentative, Sender: self, Count: claims[peer], ID: msg.ID}
	})
	if err != nil {
		return models.Errorf(models.KindTentativeRejected, "%v", err)
	}
	return nil
}

// recvMakePermanent commits the tentative checkpoint msg.ID after the rest
// of this customer's check cohort has committed it.
func (c *Customer) recvMakePermanent(ctx context.Context, msg models.Message) error {
	c.mux.Lock()
	if c.hist.committed == msg.ID {
		c.mux.Unlock()
		return nil
	}
	if c.ckpt.status != models.CheckpointTentative || c.ckpt.id != msg.ID {
		c.mux.Unlock()
		return models.Errorf(models.KindNoTentativeCheckpoint, "%s", msg.ID)
	}
	if c.ckpt.committing {
		c.mux.Unlock()
		return nil
	}
	c.ckpt.committing = true
	cohort := c.ckpt.cohort
	c.mux.Unlock()

	err := c.broadcast(ctx, cohort, func(string) models.Message {
		return models.Message{Command: models.CmdMakePermanent, ID: msg.ID}
	})

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.ckpt.id != msg.ID {
		return models.Errorf(models.KindCommitFailed, "checkpoint %s superseded", msg.ID)
	}
	if err != nil {
		c.ckpt.committing = false
		return models.Errorf(models.KindCommitFailed, "%v", err)
	}
	_, err = c.commitCheckpointLocked(msg.ID)
	return err
}

// recvUndoTentative discards the tentative checkpoint msg.ID after
// propagating the undo downstream.
func (c *Customer) recvUndoTentative(ctx context.Context, msg models.Message) error {
	c.mux.Lock()
	if c.hist.aborted == msg.ID {
		c.mux.Unlock()
		return nil
	}
	if c.ckpt.status != models.CheckpointTentative || c.ckpt.id != msg.ID {
		c.mux.Unlock()
		return models.Errorf(models.KindNoTentativeCheckpoint, "%s", msg.ID)
	}
	c.mux.Unlock()

	c.log.Info("Undoing tentative checkpoint", zap.String("checkpoint_id", msg.ID))
	c.undoCheckpoint(ctx, msg.ID)
	return nil
}
