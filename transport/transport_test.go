package transport_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohort-bank/models"
	"cohort-bank/transport"
)

// udpServer answers every datagram with reply(payload); a nil reply is never sent.
func udpServer(t *testing.T, reply func([]byte) []byte) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, transport.MaxDatagram)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if r := reply(buf[:n]); r != nil {
				_, _ = conn.WriteTo(r, addr)
			}
		}
	}()
	return conn.LocalAddr().String()
}

func TestUDPRequestReply(t *testing.T) {
	addr := udpServer(t, func(p []byte) []byte {
		return []byte(strings.ToUpper(string(p)))
	})
	c := transport.NewUDPClient(2 * time.Second)

	got, err := c.Request(context.Background(), addr, []byte("send-rollback rb-1"))
	require.NoError(t, err)
	assert.Equal(t, "SEND-ROLLBACK RB-1", string(got))
}

func TestUDPNoReplyTimesOut(t *testing.T) {
	addr := udpServer(t, func([]byte) []byte { return nil })
	c := transport.NewUDPClient(200 * time.Millisecond)

	start := time.Now()
	_, err := c.Request(context.Background(), addr, []byte("transfer 1 bob 1 alice"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoReply))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUDPContextCancel(t *testing.T) {
	addr := udpServer(t, func([]byte) []byte { return nil })
	c := transport.NewUDPClient(0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	_, err := c.Request(ctx, addr, []byte("x"))
	assert.True(t, errors.Is(err, models.ErrNoReply))
}

func TestUDPOversizedRequest(t *testing.T) {
	c := transport.NewUDPClient(time.Second)
	_, err := c.Request(context.Background(), "127.0.0.1:1", make([]byte, transport.MaxDatagram+1))
	assert.True(t, errors.Is(err, models.ErrMalformed))
}

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, payload []byte) []byte {
	return append([]byte("echo "), payload...)
}

func TestLoopback(t *testing.T) {
	lb := transport.NewLoopback()
	lb.Register("bob", echoHandler{})

	got, err := lb.Request(context.Background(), "bob", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "echo hi", string(got))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = lb.Request(ctx, "carol", []byte("hi"))
	assert.True(t, errors.Is(err, models.ErrNoReply))
}

func TestLoopbackDrop(t *testing.T) {
	lb := transport.NewLoopback()
	lb.Register("bob", echoHandler{})
	lb.DropWhen(func(addr string, payload []byte) bool {
		return strings.HasPrefix(string(payload), "transfer")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := lb.Request(ctx, "bob", []byte("transfer 1 bob 1 alice"))
	assert.True(t, errors.Is(err, models.ErrNoReply))

	_, err = lb.Request(context.Background(), "bob", []byte("send-rollback x"))
	assert.NoError(t, err)
}
