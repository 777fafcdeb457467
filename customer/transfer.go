package customer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cohort-bank/models"
)

// Transfer moves amount from this customer to recipient. A label <= 0 picks
// the next label on that channel. If the recipient does not accept, the
// withdrawal is refunded and the failure returned; the send is not retried.
// It returns the balance left after the transfer or refund.
func (c *Customer) Transfer(ctx context.Context, amount int64, recipient string, label int64) (int64, error) {
	return c.transfer(ctx, amount, recipient, label, false)
}

// EmulateLostTransfer withdraws and labels like Transfer but never sends the
// message, as if the datagram had been dropped in flight.
func (c *Customer) EmulateLostTransfer(ctx context.Context, amount int64, recipient string, label int64) (int64, error) {
	return c.transfer(ctx, amount, recipient, label, true)
}

func (c *Customer) transfer(ctx context.Context, amount int64, recipient string, label int64, lost bool) (int64, error) {
	c.mux.Lock()
	for c.holds > 0 {
		c.idle.Wait()
	}
	if err := c.initializedLocked(); err != nil {
		c.mux.Unlock()
		return 0, err
	}
	if c.directory.Len() == 0 {
		c.mux.Unlock()
		return 0, models.ErrNoCohort
	}
	if _, ok := c.directory.Lookup(recipient); !ok {
		c.mux.Unlock()
		return 0, models.Errorf(models.KindRecipientUnknown, "%s", recipient)
	}
	if err := c.executingLocked(); err != nil {
		c.mux.Unlock()
		return 0, err
	}
	balance, err := c.ledger.Withdraw(amount)
	if err != nil {
		c.mux.Unlock()
		return balance, err
	}
	if label <= 0 {
		label = c.labels.NextLabel(recipient)
	}
	c.labels.RecordSend(recipient, label)

	if lost {
		c.mux.Unlock()
		c.log.Info("Transfer lost in flight",
			zap.String("recipient", recipient), zap.Int64("amount", amount), zap.Int64("label", label))
		return balance, nil
	}
	c.sending++
	self := c.self.Name
	c.mux.Unlock()

	err = c.call(ctx, recipient, models.Message{
		Command:   models.CmdTransfer,
		Amount:    amount,
		Recipient: recipient,
		Label:     label,
		Sender:    self,
	})

	c.mux.Lock()
	defer c.mux.Unlock()
	c.sending--
	if c.sending == 0 {
		c.idle.Broadcast()
	}
	if err != nil {
		balance, refundErr := c.ledger.Deposit(amount)
		if refundErr != nil {
			c.log.Error("Refund failed", zap.String("recipient", recipient), zap.Error(refundErr))
		}
		c.log.Warn("Transfer failed, refunded",
			zap.String("recipient", recipient), zap.Int64("amount", amount), zap.Error(err))
		return balance, fmt.Errorf("transfer to %s refunded: %w", recipient, err)
	}
	c.log.Info("Transfer sent",
		zap.String("recipient", recipient), zap.Int64("amount", amount), zap.Int64("label", label))
	return c.ledger.Balance(), nil
}

// recvTransfer credits a transfer from a cohort peer and counts it on the
// sender's channel. Both happen in the same epoch.
func (c *Customer) recvTransfer(msg models.Message) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.executingLocked(); err != nil {
		return err
	}
	if msg.Recipient != c.self.Name {
		return models.Errorf(models.KindRecipientUnknown, "%s is not %s", msg.Recipient, c.self.Name)
	}
	if _, ok := c.directory.Lookup(msg.Sender); !ok {
		return models.Errorf(models.KindRecipientUnknown, "sender %s not in cohort", msg.Sender)
	}
	if _, err := c.ledger.Deposit(msg.Amount); err != nil {
		return err
	}
	c.labels.RecordRecv(msg.Sender)
	c.log.Info("Transfer received",
		zap.String("sender", msg.Sender), zap.Int64("amount", msg.Amount), zap.Int64("label", msg.Label))
	return nil
}
