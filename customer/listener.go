package customer

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"cohort-bank/models"
	"cohort-bank/transport"
)

// Handle decodes one peer request, applies it and encodes the reply. A bad
// request yields a failure reply; it never stops the listener.
func (c *Customer) Handle(ctx context.Context, payload []byte) []byte {
	msg, err := models.ParseMessage(payload)
	if err != nil {
		c.log.Warn("Rejected malformed request", zap.ByteString("payload", payload), zap.Error(err))
		return models.Failure(err).Encode()
	}
	return c.handleMessage(ctx, msg)
}

func (c *Customer) handleMessage(ctx context.Context, msg models.Message) []byte {
	var err error
	switch msg.Command {
	case models.CmdTransfer:
		err = c.recvTransfer(msg)
	case models.CmdTakeTentative:
		err = c.recvTakeTentative(ctx, msg)
	case models.CmdMakePermanent:
		err = c.recvMakePermanent(ctx, msg)
	case models.CmdUndoTentative:
		err = c.recvUndoTentative(ctx, msg)
	case models.CmdPrepareRollback:
		err = c.recvPrepareToRollback(ctx, msg)
	case models.CmdSendRollback:
		err = c.recvSendRollback(ctx, msg)
	case models.CmdDoNotRollback:
		err = c.recvDoNotRollback(ctx, msg)
	default:
		err = models.Errorf(models.KindUnknownCommand, "%q", msg.Command)
	}
	if err != nil {
		c.log.Warn("Request failed", zap.String("command", string(msg.Command)), zap.Error(err))
		return models.Failure(err).Encode()
	}
	return models.Success().Encode()
}

// Serve runs the listener loop on conn until ctx is done. Transfers are
// answered inline, in arrival order. Checkpoint and rollback messages may fan
// out to other peers, so each runs as its own task and the loop keeps
// accepting datagrams while they are outstanding.
func (c *Customer) Serve(ctx context.Context, conn net.PacketConn) error {
	var tasks sync.WaitGroup
	defer tasks.Wait()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	buf := make([]byte, transport.MaxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		payload := append([]byte(nil), buf[:n]...)

		msg, err := models.ParseMessage(payload)
		if err != nil {
			c.log.Warn("Rejected malformed request",
				zap.String("from", addr.String()), zap.ByteString("payload", payload), zap.Error(err))
			c.reply(conn, addr, models.Failure(err).Encode())
			continue
		}
		if !msg.Command.Negotiation() {
			c.reply(conn, addr, c.handleMessage(ctx, msg))
			continue
		}
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			c.reply(conn, addr, c.handleMessage(ctx, msg))
		}()
	}
}

func (c *Customer) reply(conn net.PacketConn, addr net.Addr, payload []byte) {
	if _, err := conn.WriteTo(payload, addr); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Warn("Failed to send reply", zap.String("to", addr.String()), zap.Error(err))
	}
}
