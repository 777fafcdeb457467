// Package transport carries peer requests: one datagram out, one datagram back.
package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"cohort-bank/models"
)

// MaxDatagram bounds every request and reply payload.
const MaxDatagram = 4096

// Requester sends payload to addr and blocks for the single reply.
type Requester interface {
	Request(ctx context.Context, addr string, payload []byte) ([]byte, error)
}

// Handler answers one request payload with one reply payload.
type Handler interface {
	Handle(ctx context.Context, payload []byte) []byte
}

// UDPClient is a Requester over UDP. Each request uses its own socket, so the
// reply read back always belongs to the same conversation.
type UDPClient struct {
	// Timeout bounds a request whose context has no deadline. Zero means no bound.
	Timeout time.Duration
}

func NewUDPClient(timeout time.Duration) *UDPClient {
	return &UDPClient{Timeout: timeout}
}

func (c *UDPClient) Request(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	if len(payload) > MaxDatagram {
		return nil, models.Errorf(models.KindMalformed, "request of %d bytes exceeds %d", len(payload), MaxDatagram)
	}
	if _, ok := ctx.Deadline(); !ok && c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, models.Errorf(models.KindNoReply, "dial %s: %v", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(payload); err != nil {
		return nil, models.Errorf(models.KindNoReply, "send to %s: %v", addr, err)
	}
	buf := make([]byte, MaxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return nil, models.Errorf(models.KindNoReply, "reply from %s: %v", addr, err)
	}
	return buf[:n], nil
}
