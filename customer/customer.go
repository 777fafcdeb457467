// Package customer implements a cohort member: its ledger, the transfer
// protocol between members, and the checkpoint and rollback negotiations
// that keep the cohort able to return to a consistent cut.
package customer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cohort-bank/channel"
	"cohort-bank/ledger"
	"cohort-bank/logger"
	"cohort-bank/models"
	"cohort-bank/repository"
	"cohort-bank/transport"
)

// DefaultTimeout bounds every peer request when none is configured.
const DefaultTimeout = 5 * time.Second

// Customer is one node of a cohort. All of its state is owned here; nothing
// is shared between customers in the same process.
type Customer struct {
	repo      repository.CheckpointRepositoryInterface
	transport transport.Requester
	timeout   time.Duration

	mux       sync.Mutex
	log       *zap.Logger
	self      models.Peer
	directory *Directory
	ledger    *ledger.Ledger
	labels    *channel.Tracker
	epoch     uint64
	resume    bool
	ckpt      *checkpointRecord
	roll      *rollbackRecord
	hist      history

	// Outbound transfers between withdrawal and reply. An epoch boundary
	// waits for them so a send never straddles a reset.
	sending int
	holds   int // new sends wait while a commit is settling
	idle    *sync.Cond
}

// history remembers finished negotiations across epoch resets so redelivered
// control messages are still answered.
type history struct {
	committed  string
	aborted    string
	rolledBack string
	cancelled  string
}

// NewCustomer creates a customer that is not yet enrolled in a cohort.
func NewCustomer(repo repository.CheckpointRepositoryInterface, t transport.Requester, timeout time.Duration) *Customer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Customer{
		repo:      repo,
		transport: t,
		timeout:   timeout,
		log:       logger.Logger,
		ckpt:      newCheckpointRecord(),
		roll:      newRollbackRecord(),
	}
	c.idle = sync.NewCond(&c.mux)
	return c
}

// validName rejects names that cannot travel as one wire token or that would
// overlap another owner's snapshot keys.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, ": \t\r\n") {
		return models.Errorf(models.KindMalformed, "invalid customer name %q", name)
	}
	return nil
}

// Enroll joins the cohort handed out by the coordinator. It creates the peer
// directory, the ledger and a fresh Label per peer, then writes an initial
// snapshot so a rollback always has a state to return to.
func (c *Customer) Enroll(e models.Enrollment) error {
	if err := validName(e.Name); err != nil {
		return err
	}
	for _, p := range e.Cohort {
		if err := validName(p.Name); err != nil {
			return err
		}
	}
	if e.Balance < 0 {
		return models.Errorf(models.KindInvalidAmount, "opening balance %d", e.Balance)
	}
	self := models.Peer{Name: e.Name}
	for _, p := range e.Cohort {
		if p.Name == e.Name {
			self = p
		}
	}
	dir := NewDirectory(e.Name, e.Cohort)

	c.mux.Lock()
	defer c.mux.Unlock()

	latest, err := c.repo.GetLatestCheckpoint(e.Name)
	if err != nil {
		return err
	}
	c.epoch = 0
	if latest != nil {
		c.epoch = latest.Epoch + 1
	}
	c.log = logger.Logger.With(zap.String("customer", e.Name))
	c.self = self
	c.directory = dir
	c.ledger = ledger.NewLedger(e.Balance)
	c.labels = channel.NewTracker(dir.Names())
	c.hist = history{}
	c.resetEpochLocked()

	if _, err := c.writeSnapshotLocked("enrollment"); err != nil {
		return err
	}
	c.log.Info("Enrolled in cohort",
		zap.Int64("balance", e.Balance), zap.Strings("peers", dir.Names()))
	return nil
}

// initializedLocked fails until Enroll has run.
func (c *Customer) initializedLocked() error {
	if c.ledger == nil {
		return models.ErrNotInitialized
	}
	return nil
}

// executingLocked fails while a rollback has suspended local execution.
func (c *Customer) executingLocked() error {
	if err := c.initializedLocked(); err != nil {
		return err
	}
	if !c.resume {
		return models.Errorf(models.KindExecutionSuspended, "rollback %s prepared", c.roll.id)
	}
	return nil
}

func (c *Customer) Name() string {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.self.Name
}

// Deposit credits the local ledger.
func (c *Customer) Deposit(amount int64) (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.executingLocked(); err != nil {
		return 0, err
	}
	return c.ledger.Deposit(amount)
}

// Withdraw debits the local ledger, never below zero.
func (c *Customer) Withdraw(amount int64) (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.executingLocked(); err != nil {
		return 0, err
	}
	return c.ledger.Withdraw(amount)
}

func (c *Customer) Balance() (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.initializedLocked(); err != nil {
		return 0, err
	}
	return c.ledger.Balance(), nil
}

// Cohort returns the enrolled cohort in enrollment order, the customer included.
func (c *Customer) Cohort() ([]models.Peer, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.initializedLocked(); err != nil {
		return nil, err
	}
	return c.directory.Roster(), nil
}

// Labels returns a copy of the channel state, keyed by peer name.
func (c *Customer) Labels() (map[string]models.Label, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.initializedLocked(); err != nil {
		return nil, err
	}
	return c.labels.Labels(), nil
}

func (c *Customer) Status() (models.Status, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.initializedLocked(); err != nil {
		return models.Status{}, err
	}
	return models.Status{
		Name:         c.self.Name,
		Balance:      c.ledger.Balance(),
		Epoch:        c.epoch,
		Executing:    c.resume,
		Checkpoint:   c.ckpt.status,
		CheckpointID: c.ckpt.id,
		Rollback:     c.roll.status,
		RollbackID:   c.roll.id,
	}, nil
}

// LatestCheckpoint returns the last snapshot this customer persisted.
func (c *Customer) LatestCheckpoint() (*models.Checkpoint, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.initializedLocked(); err != nil {
		return nil, err
	}
	return c.repo.GetLatestCheckpoint(c.self.Name)
}

// Checkpoints returns every snapshot this customer persisted, oldest first.
func (c *Customer) Checkpoints() ([]*models.Checkpoint, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.initializedLocked(); err != nil {
		return nil, err
	}
	return c.repo.GetCheckpoints(c.self.Name)
}

// resetEpochLocked replaces the whole negotiation apparatus. Every Label,
// negotiation record and the execution flag start over from this point.
func (c *Customer) resetEpochLocked() {
	c.labels.Reset(c.directory.Names())
	c.ckpt = newCheckpointRecord()
	c.roll = newRollbackRecord()
	c.resume = true
}

// waitSendsLocked blocks until no outbound transfer is in flight. c.mux is
// released while waiting, so callers recheck their negotiation afterwards.
func (c *Customer) waitSendsLocked() {
	for c.sending > 0 {
		c.idle.Wait()
	}
}

func (c *Customer) writeSnapshotLocked(id string) (*models.Checkpoint, error) {
	cp := &models.Checkpoint{
		ID:        id,
		Owner:     c.self.Name,
		Epoch:     c.epoch,
		Balance:   c.ledger.Balance(),
		Address:   c.self.Address,
		Port:      c.self.Port,
		PeerPort:  c.self.PeerPort,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, p := range c.directory.Peers() {
		cp.Peers = append(cp.Peers, models.PeerRow{
			Name:     p.Name,
			Balance:  models.SentinelBalance,
			Address:  p.Address,
			Port:     p.Port,
			PeerPort: p.PeerPort,
		})
	}
	if err := c.repo.PutCheckpoint(cp); err != nil {
		c.log.Error("Failed to persist snapshot", zap.String("checkpoint_id", id), zap.Error(err))
		return nil, err
	}
	c.epoch++
	c.log.Info("Snapshot written",
		zap.String("checkpoint_id", id), zap.Uint64("epoch", cp.Epoch), zap.Int64("balance", cp.Balance))
	return cp, nil
}

// restoreSnapshotLocked puts the ledger back to the latest persisted snapshot.
// Peer rows are ignored: each peer restores its own balance from its own record.
func (c *Customer) restoreSnapshotLocked() (*models.Checkpoint, error) {
	cp, err := c.repo.GetLatestCheckpoint(c.self.Name)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, models.Errorf(models.KindRollbackFailed, "no snapshot for %s", c.self.Name)
	}
	c.ledger.Restore(cp.Balance)
	c.log.Info("Snapshot restored",
		zap.String("checkpoint_id", cp.ID), zap.Uint64("epoch", cp.Epoch), zap.Int64("balance", cp.Balance))
	return cp, nil
}

// call sends msg to a cohort peer and turns its reply into an error.
// Transport failures and refusals look the same to the caller.
func (c *Customer) call(ctx context.Context, peer string, msg models.Message) error {
	c.mux.Lock()
	dir := c.directory
	c.mux.Unlock()

	p, ok := dir.Lookup(peer)
	if !ok {
		return models.Errorf(models.KindRecipientUnknown, "%s", peer)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.transport.Request(ctx, p.PeerAddr(), msg.Encode())
	if err != nil {
		return err
	}
	reply, err := models.ParseReply(raw)
	if err != nil {
		return err
	}
	return reply.Err()
}
