package models

// Label is the per-peer causal bookkeeping kept by a customer for the
// channel between itself and one other cohort member.
type Label struct {
	Base      int64 `json:"base"`       // first label sent to the peer this epoch, 0 if none
	FirstSent int64 `json:"first_sent"` // label of the latest message sent to the peer
	LastSent  int64 `json:"last_sent"`  // same as FirstSent, checked by rollback
	LastRecv  int64 `json:"last_recv"`  // messages received from the peer this epoch
}

// Active reports whether any message has flowed on the channel this epoch.
func (l Label) Active() bool {
	return l.LastSent > 0 || l.LastRecv > 0
}
