package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cohort-bank/models"
)

func TestDirectory(t *testing.T) {
	cohort := []models.Peer{
		{Name: "carol", Address: "10.0.0.3", PeerPort: 7003},
		{Name: "alice", Address: "10.0.0.1", PeerPort: 7001},
		{Name: "bob", Address: "10.0.0.2", PeerPort: 7002},
		{Name: "carol", Address: "10.9.9.9", PeerPort: 9999},
	}
	d := NewDirectory("alice", cohort)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"carol", "bob"}, d.Names())
	assert.Len(t, d.Roster(), 4)

	p, ok := d.Lookup("carol")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.3:7003", p.PeerAddr())

	_, ok = d.Lookup("alice")
	assert.False(t, ok)
	_, ok = d.Lookup("mallory")
	assert.False(t, ok)

	names := d.Names()
	names[0] = "mallory"
	assert.Equal(t, []string{"carol", "bob"}, d.Names())
}
