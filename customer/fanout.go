package customer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cohort-bank/models"
)

// broadcast sends one message per peer concurrently and waits for every
// reply. It reports all refusals, not just the first.
func (c *Customer) broadcast(ctx context.Context, peers []string, build func(peer string) models.Message) error {
	errs := make([]error, len(peers))
	var eg errgroup.Group
	for i, peer := range peers {
		i, peer := i, peer
		eg.Go(func() error {
			msg := build(peer)
			if err := c.call(ctx, peer, msg); err != nil {
				c.log.Warn("Peer refused",
					zap.String("peer", peer), zap.String("command", string(msg.Command)), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", peer, err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}
