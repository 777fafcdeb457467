package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cohort-bank/models"
)

// Client calls the operator API of one customer.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the API at base, e.g. "http://127.0.0.1:8081".
// Checkpoint and rollback wait on the whole cohort, so timeout should cover
// several peer round trips.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *Client) Balance(ctx context.Context) (int64, error) {
	var out models.BalanceResponse
	err := c.do(ctx, http.MethodGet, "/balance", nil, &out)
	return out.Balance, err
}

func (c *Client) Deposit(ctx context.Context, amount int64) (int64, error) {
	var out models.BalanceResponse
	err := c.do(ctx, http.MethodPost, "/deposit", models.AmountRequest{Amount: amount}, &out)
	return out.Balance, err
}

func (c *Client) Withdraw(ctx context.Context, amount int64) (int64, error) {
	var out models.BalanceResponse
	err := c.do(ctx, http.MethodPost, "/withdraw", models.AmountRequest{Amount: amount}, &out)
	return out.Balance, err
}

func (c *Client) Transfer(ctx context.Context, req models.TransferRequest) (int64, error) {
	var out models.BalanceResponse
	err := c.do(ctx, http.MethodPost, "/transfer", req, &out)
	return out.Balance, err
}

func (c *Client) Checkpoint(ctx context.Context) (*models.Checkpoint, error) {
	var out models.CheckpointResponse
	err := c.do(ctx, http.MethodPost, "/checkpoint", nil, &out)
	return out.Checkpoint, err
}

func (c *Client) Rollback(ctx context.Context) (*models.Checkpoint, error) {
	var out models.CheckpointResponse
	err := c.do(ctx, http.MethodPost, "/rollback", nil, &out)
	return out.Checkpoint, err
}

func (c *Client) LatestCheckpoint(ctx context.Context) (*models.Checkpoint, error) {
	var out models.Checkpoint
	if err := c.do(ctx, http.MethodGet, "/checkpoints/latest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cohort(ctx context.Context) ([]models.Peer, error) {
	var out []models.Peer
	err := c.do(ctx, http.MethodGet, "/cohort", nil, &out)
	return out, err
}

func (c *Client) Labels(ctx context.Context) (map[string]models.Label, error) {
	var out map[string]models.Label
	err := c.do(ctx, http.MethodGet, "/labels", nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (models.Status, error) {
	var out models.Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// do sends one API call. A non-2xx answer is turned back into a *models.Error
// carrying the kind the customer reported.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var failure models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil || failure.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		kind := failure.Kind
		if kind == "" {
			kind = models.KindPeerFailure
		}
		detail := strings.TrimPrefix(strings.TrimPrefix(failure.Error, string(kind)), ": ")
		return &models.Error{Kind: kind, Detail: detail}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
