// Package bank is the customer side of the coordinator contract. The
// coordinator registers accounts and groups them into cohorts; a customer
// asks it for its cohort once and enrolls with the answer.
package bank

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cohort-bank/logger"
	"cohort-bank/models"
	"cohort-bank/transport"
)

// Coordinator commands
const (
	CmdOpen         = "open"
	CmdNewCohort    = "new-cohort"
	CmdDeleteCohort = "delete-cohort"
	CmdExit         = "exit"
)

// Response is the coordinator's JSON reply. The enrollment fields are only
// set by new-cohort.
type Response struct {
	models.Reply
	models.Enrollment
}

// Client talks to one coordinator over the datagram transport.
type Client struct {
	transport transport.Requester
	addr      string
	timeout   time.Duration
}

func NewClient(t transport.Requester, addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{transport: t, addr: addr, timeout: timeout}
}

// Open registers self with the coordinator.
func (c *Client) Open(ctx context.Context, self models.Peer, balance int64) error {
	_, err := c.do(ctx, CmdOpen, self.Name, strconv.FormatInt(balance, 10),
		self.Address, strconv.Itoa(self.Port), strconv.Itoa(self.PeerPort))
	return err
}

// NewCohort asks the coordinator to place name in a cohort and returns the
// enrollment to join it with.
func (c *Client) NewCohort(ctx context.Context, name string) (models.Enrollment, error) {
	resp, err := c.do(ctx, CmdNewCohort, name)
	if err != nil {
		return models.Enrollment{}, err
	}
	e := resp.Enrollment
	if e.Name == "" {
		e.Name = name
	}
	if e.Name != name {
		return models.Enrollment{}, models.Errorf(models.KindMalformed, "enrollment for %q, asked for %q", e.Name, name)
	}
	if len(e.Cohort) == 0 {
		return models.Enrollment{}, models.Errorf(models.KindNoCohort, "coordinator returned an empty cohort")
	}
	return e, nil
}

func (c *Client) DeleteCohort(ctx context.Context, name string) error {
	_, err := c.do(ctx, CmdDeleteCohort, name)
	return err
}

func (c *Client) Exit(ctx context.Context, name string) error {
	_, err := c.do(ctx, CmdExit, name)
	return err
}

func (c *Client) do(ctx context.Context, tokens ...string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.transport.Request(ctx, c.addr, []byte(strings.Join(tokens, " ")))
	if err != nil {
		logger.Logger.Error("Coordinator unreachable", zap.String("bank", c.addr), zap.String("command", tokens[0]), zap.Error(err))
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, models.Errorf(models.KindMalformed, "coordinator reply: %v", err)
	}
	if resp.Res != models.ResSuccess && resp.Res != models.ResFailure {
		return Response{}, models.Errorf(models.KindMalformed, "coordinator reply: unexpected res %q", resp.Res)
	}
	if err := resp.Reply.Err(); err != nil {
		logger.Logger.Warn("Coordinator refused", zap.String("command", tokens[0]), zap.Error(err))
		return resp, err
	}
	logger.Logger.Info("Coordinator accepted", zap.String("command", tokens[0]))
	return resp, nil
}
