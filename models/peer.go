package models

import (
	"net"
	"strconv"
)

type Peer struct {
	Name     string `json:"name"`      // unique within the cohort
	Address  string `json:"address"`   // IP address
	Port     int    `json:"port"`      // operator command port
	PeerPort int    `json:"peer_port"` // datagram port for peer traffic
}

// PeerAddr returns the host:port that peer traffic is sent to.
func (p Peer) PeerAddr() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.PeerPort))
}

// Enrollment is what the coordinator hands a customer once it joins a cohort.
// Cohort includes the customer itself.
type Enrollment struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Cohort  []Peer `json:"cohort"`
}
