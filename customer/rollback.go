package customer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cohort-bank/models"
)

type rollbackRecord struct {
	id         string
	cohort     []string
	status     models.RollbackStatus
	committing bool // send-rollback already propagating
	aborting   bool // do-not-rollback already propagating
}

func newRollbackRecord() *rollbackRecord {
	return &rollbackRecord{status: models.RollbackStable}
}

// Rollback returns the cohort to the last permanent checkpoint. Every peer a
// message flowed to or from this epoch is asked to prepare; local execution
// is suspended meanwhile. If all prepare, everyone restores its latest
// snapshot; otherwise the rollback is cancelled and execution resumes.
func (c *Customer) Rollback(ctx context.Context) (*models.Checkpoint, error) {
	c.mux.Lock()
	if err := c.initializedLocked(); err != nil {
		c.mux.Unlock()
		return nil, err
	}
	if c.roll.status == models.RollbackPrepared {
		id := c.roll.id
		c.mux.Unlock()
		return nil, models.Errorf(models.KindRollbackConflict, "rollback %s in progress", id)
	}
	id := uuid.NewString()
	c.roll = &rollbackRecord{id: id, status: models.RollbackPrepared}
	c.resume = false
	c.waitSendsLocked()
	if c.roll.id != id {
		c.mux.Unlock()
		return nil, models.Errorf(models.KindRollbackRefused, "rollback %s superseded", id)
	}
	self := c.self.Name
	cohort := c.labels.RollCohort()
	claims := c.lastSentLocked(cohort)
	c.roll.cohort = cohort
	c.mux.Unlock()

	log := c.log.With(zap.String("rollback_id", id))
	log.Info("Rollback initiated", zap.Strings("roll_cohort", cohort))

	err := c.broadcast(ctx, cohort, func(peer string) models.Message {
		return models.Message{Command: models.CmdPrepareRollback, Sender: self, Count: claims[peer], ID: id}
	})
	if err != nil {
		c.cancelRollback(ctx, id)
		log.Warn("Rollback refused", zap.Error(err))
		return nil, models.Errorf(models.KindRollbackRefused, "%v", err)
	}

	c.mux.Lock()
	c.roll.committing = true
	c.mux.Unlock()

	err = c.broadcast(ctx, cohort, func(string) models.Message {
		return models.Message{Command: models.CmdSendRollback, ID: id}
	})

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.roll.id != id {
		return nil, models.Errorf(models.KindRollbackFailed, "rollback %s superseded", id)
	}
	cp, rerr := c.rollbackLocked(id)
	if rerr != nil {
		return nil, rerr
	}
	if err != nil {
		log.Error("Rolled back locally, not every peer confirmed", zap.Error(err))
		return cp, models.Errorf(models.KindRollbackFailed, "%v", err)
	}
	return cp, nil
}

func (c *Customer) lastSentLocked(peers []string) map[string]int64 {
	claims := make(map[string]int64, len(peers))
	for _, p := range peers {
		l, _ := c.labels.Label(p)
		claims[p] = l.LastSent
	}
	return claims
}

// rollbackLocked restores the latest snapshot and starts a new epoch.
func (c *Customer) rollbackLocked(id string) (*models.Checkpoint, error) {
	cp, err := c.restoreSnapshotLocked()
	if err != nil {
		return nil, err
	}
	c.roll.status = models.RollbackRolledBack
	c.hist.rolledBack = id
	c.resetEpochLocked()
	c.log.Info("Rolled back", zap.String("rollback_id", id), zap.String("checkpoint_id", cp.ID))
	return cp, nil
}

// cancelRollback propagates do-not-rollback for id, drops the local record
// and resumes execution.
func (c *Customer) cancelRollback(ctx context.Context, id string) {
	c.mux.Lock()
	if c.roll.id != id || c.roll.aborting {
		c.mux.Unlock()
		return
	}
	c.roll.aborting = true
	cohort := c.roll.cohort
	c.mux.Unlock()

	if err := c.broadcast(ctx, cohort, func(string) models.Message {
		return models.Message{Command: models.CmdDoNotRollback, ID: id}
	}); err != nil {
		c.log.Warn("Cancel not acknowledged by every peer", zap.String("rollback_id", id), zap.Error(err))
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.roll.id == id {
		c.roll.status = models.RollbackCancelled
		c.roll = newRollbackRecord()
		c.resume = true
		c.hist.cancelled = id
	}
}

// recvPrepareToRollback answers prepare-to-rollback. The customer only agrees
// when the initiator claims to have sent more than was received from it,
// meaning messages were lost on the way.
func (c *Customer) recvPrepareToRollback(ctx context.Context, msg models.Message) error {
	c.mux.Lock()
	if err := c.initializedLocked(); err != nil {
		c.mux.Unlock()
		return err
	}
	if c.roll.status == models.RollbackPrepared {
		id := c.roll.id
		c.mux.Unlock()
		if id == msg.ID {
			return nil
		}
		return models.Errorf(models.KindRollbackConflict, "rollback %s in progress", id)
	}
	if c.hist.rolledBack == msg.ID {
		c.mux.Unlock()
		return nil
	}
	if !c.resume {
		c.mux.Unlock()
		return models.Errorf(models.KindRollbackRefused, "execution already suspended")
	}
	// A tentative checkpoint left behind by a failed commit is only cleared
	// by rolling back, so it is reason enough to agree.
	dangling := c.ckpt.status == models.CheckpointTentative
	if !dangling && !c.labels.RollbackNeeded(msg.Sender, msg.Count) {
		l, _ := c.labels.Label(msg.Sender)
		c.mux.Unlock()
		return models.Errorf(models.KindRollbackRefused,
			"%s claims last_sent %d, received %d", msg.Sender, msg.Count, l.LastRecv)
	}
	c.roll = &rollbackRecord{id: msg.ID, status: models.RollbackPrepared}
	c.resume = false
	c.waitSendsLocked()
	if c.roll.id != msg.ID || c.roll.status != models.RollbackPrepared {
		c.mux.Unlock()
		return models.Errorf(models.KindRollbackRefused, "rollback %s cancelled while preparing", msg.ID)
	}
	self := c.self.Name
	cohort := c.labels.RollCohort()
	claims := c.lastSentLocked(cohort)
	c.roll.cohort = cohort
	c.mux.Unlock()

	c.log.Info("Prepared to roll back, execution suspended",
		zap.String("rollback_id", msg.ID), zap.String("initiator", msg.Sender), zap.Strings("roll_cohort", cohort))

	err := c.broadcast(ctx, cohort, func(peer string) models.Message {
		return models.Message{Command: models.CmdPrepareRollback, Sender: self, Count: claims[peer], ID: msg.ID}
	})
	if err != nil {
		return models.Errorf(models.KindRollbackRefused, "%v", err)
	}
	return nil
}

// recvSendRollback carries out the prepared rollback msg.ID once the rest of
// this customer's roll cohort was told to.
func (c *Customer) recvSendRollback(ctx context.Context, msg models.Message) error {
	c.mux.Lock()
	if c.hist.rolledBack == msg.ID {
		c.mux.Unlock()
		return nil
	}
	if c.roll.status != models.RollbackPrepared || c.roll.id != msg.ID {
		c.mux.Unlock()
		return models.Errorf(models.KindNoPreparedRollback, "%s", msg.ID)
	}
	if c.roll.committing {
		c.mux.Unlock()
		return nil
	}
	c.roll.committing = true
	cohort := c.roll.cohort
	c.mux.Unlock()

	err := c.broadcast(ctx, cohort, func(string) models.Message {
		return models.Message{Command: models.CmdSendRollback, ID: msg.ID}
	})

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.roll.id != msg.ID {
		return models.Errorf(models.KindRollbackFailed, "rollback %s superseded", msg.ID)
	}
	if _, rerr := c.rollbackLocked(msg.ID); rerr != nil {
		return rerr
	}
	if err != nil {
		return models.Errorf(models.KindRollbackFailed, "rolled back, downstream: %v", err)
	}
	return nil
}

// recvDoNotRollback cancels the prepared rollback msg.ID.
func (c *Customer) recvDoNotRollback(ctx context.Context, msg models.Message) error {
	c.mux.Lock()
	if c.hist.cancelled == msg.ID {
		c.mux.Unlock()
		return nil
	}
	if c.roll.status != models.RollbackPrepared || c.roll.id != msg.ID {
		c.mux.Unlock()
		return models.Errorf(models.KindNoPreparedRollback, "%s", msg.ID)
	}
	c.mux.Unlock()

	c.log.Info("Rollback cancelled", zap.String("rollback_id", msg.ID))
	c.cancelRollback(ctx, msg.ID)
	return nil
}
