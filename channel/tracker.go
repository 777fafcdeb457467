// Package channel keeps one Label per cohort peer and answers the causal
// questions the checkpoint and rollback protocols ask of them.
package channel

import (
	"sort"
	"sync"

	"cohort-bank/models"
)

// Tracker owns the Labels of one customer, keyed by peer name.
type Tracker struct {
	mu     sync.RWMutex
	labels map[string]*models.Label
}

// NewTracker creates a zeroed Label for every peer.
func NewTracker(peers []string) *Tracker {
	t := &Tracker{}
	t.Reset(peers)
	return t
}

// Reset replaces every Label with a fresh one, starting a new epoch.
func (t *Tracker) Reset(peers []string) {
	labels := make(map[string]*models.Label, len(peers))
	for _, p := range peers {
		labels[p] = &models.Label{}
	}
	t.mu.Lock()
	t.labels = labels
	t.mu.Unlock()
}

// Label returns a copy of the peer's Label.
func (t *Tracker) Label(peer string) (models.Label, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.labels[peer]
	if !ok {
		return models.Label{}, false
	}
	return *l, true
}

// Labels returns a copy of every Label.
func (t *Tracker) Labels() map[string]models.Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.Label, len(t.labels))
	for p, l := range t.labels {
		out[p] = *l
	}
	return out
}

// NextLabel returns the label following the last one sent to peer.
func (t *Tracker) NextLabel(peer string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if l, ok := t.labels[peer]; ok {
		return l.LastSent + 1
	}
	return 1
}

// RecordSend notes that a message carrying label was sent to peer.
// Base is set lazily from the first label of the epoch.
func (t *Tracker) RecordSend(peer string, label int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.labels[peer]
	if !ok {
		return false
	}
	if l.Base == 0 {
		l.Base = label
	}
	l.FirstSent = label
	l.LastSent = label
	return true
}

// RecordRecv counts one message received from peer.
func (t *Tracker) RecordRecv(peer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.labels[peer]
	if !ok {
		return false
	}
	l.LastRecv++
	return true
}

// CheckCohort returns the peers heard from this epoch, sorted by name.
func (t *Tracker) CheckCohort() []string {
	return t.collect(func(l *models.Label) bool { return l.LastRecv > 0 })
}

// RollCohort returns every peer a message flowed to or from this epoch, sorted by name.
func (t *Tracker) RollCohort() []string {
	return t.collect(func(l *models.Label) bool { return l.Active() })
}

func (t *Tracker) collect(keep func(*models.Label) bool) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var peers []string
	for p, l := range t.labels {
		if keep(l) {
			peers = append(peers, p)
		}
	}
	sort.Strings(peers)
	return peers
}

// ConsistentCheckpointClaim validates the last_recv an initiator claims for the
// channel from this customer to it. The claim reconciles when the label of the
// message it says it last delivered equals the label this customer last sent.
func (t *Tracker) ConsistentCheckpointClaim(initiator string, lastRecvClaimed int64) bool {
	l, ok := t.Label(initiator)
	if !ok {
		return false
	}
	expected := lastRecvClaimed + l.Base - 1
	return expected == l.FirstSent && l.FirstSent > 0
}

// RollbackNeeded compares the last_sent an initiator claims for the channel to
// this customer with what was actually received. Only a strictly larger send
// count means messages are missing in flight.
func (t *Tracker) RollbackNeeded(initiator string, lastSentClaimed int64) bool {
	l, ok := t.Label(initiator)
	if !ok {
		return false
	}
	return lastSentClaimed > l.LastRecv
}
