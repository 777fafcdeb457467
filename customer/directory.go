package customer

import "cohort-bank/models"

// Directory maps cohort peer names to addresses. It is built once at
// enrollment and never modified afterwards.
type Directory struct {
	roster []models.Peer
	peers  map[string]models.Peer
	names  []string
}

// NewDirectory indexes cohort, leaving self out of the peer set.
func NewDirectory(self string, cohort []models.Peer) *Directory {
	d := &Directory{
		roster: append([]models.Peer(nil), cohort...),
		peers:  make(map[string]models.Peer, len(cohort)),
	}
	for _, p := range cohort {
		if p.Name == self {
			continue
		}
		if _, dup := d.peers[p.Name]; dup {
			continue
		}
		d.peers[p.Name] = p
		d.names = append(d.names, p.Name)
	}
	return d
}

func (d *Directory) Lookup(name string) (models.Peer, bool) {
	p, ok := d.peers[name]
	return p, ok
}

// Names lists the other members in enrollment order.
func (d *Directory) Names() []string {
	return append([]string(nil), d.names...)
}

// Peers lists the other members in enrollment order.
func (d *Directory) Peers() []models.Peer {
	out := make([]models.Peer, 0, len(d.names))
	for _, n := range d.names {
		out = append(out, d.peers[n])
	}
	return out
}

// Roster is the full cohort as enrolled, self included.
func (d *Directory) Roster() []models.Peer {
	return append([]models.Peer(nil), d.roster...)
}

func (d *Directory) Len() int {
	return len(d.names)
}
