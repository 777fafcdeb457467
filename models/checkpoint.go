package models

import "fmt"

// SentinelBalance marks peer rows in a snapshot: only the owner's balance is authoritative.
const SentinelBalance int64 = -1

type PeerRow struct {
	Name     string `json:"name"`
	Balance  int64  `json:"balance"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	PeerPort int    `json:"peer_port"`
}

// Checkpoint is the persisted snapshot written when a checkpoint becomes permanent.
type Checkpoint struct {
	ID        string    `json:"id"`        // checkpoint id the cohort agreed on
	Owner     string    `json:"owner"`     // customer name
	Epoch     uint64    `json:"epoch"`     // increases with every snapshot of the owner
	Balance   int64     `json:"balance"`   // owner balance at commit
	Address   string    `json:"address"`   // owner IP address
	Port      int       `json:"port"`      // owner command port
	PeerPort  int       `json:"peer_port"` // owner peer port
	Peers     []PeerRow `json:"peers"`     // one row per other cohort member
	Timestamp int64     `json:"timestamp"` // unix timestamp in ms
}

// Rows renders the snapshot as the flat record: owner first, then one line per peer.
func (cp *Checkpoint) Rows() []string {
	rows := make([]string, 0, len(cp.Peers)+1)
	rows = append(rows, fmt.Sprintf("%s %d %s %d %d", cp.Owner, cp.Balance, cp.Address, cp.Port, cp.PeerPort))
	for _, p := range cp.Peers {
		rows = append(rows, fmt.Sprintf("%s %d %s %d %d", p.Name, p.Balance, p.Address, p.Port, p.PeerPort))
	}
	return rows
}
