// Package console is the interactive operator prompt of a customer. Each line
// is one command, sent to the customer's operator API.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"cohort-bank/models"
)

// Command is one parsed console line.
type Command struct {
	Name      string
	Amount    int64
	Recipient string
	Label     int64
}

const usage = `commands:
  deposit <amount>
  withdraw <amount>
  transfer <amount> <recipient> [label]
  lost-transfer <amount> <recipient> [label]
  checkpoint
  rollback
  balance | cohort | labels | status | latest
  help | exit`

// ParseCommand splits a console line into a Command.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	cmd := Command{Name: strings.ToLower(fields[0])}
	args := fields[1:]

	var err error
	switch cmd.Name {
	case "deposit", "withdraw":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: %s <amount>", cmd.Name)
		}
		cmd.Amount, err = parseAmount(args[0])
	case "transfer", "lost-transfer":
		if len(args) != 2 && len(args) != 3 {
			return Command{}, fmt.Errorf("usage: %s <amount> <recipient> [label]", cmd.Name)
		}
		if cmd.Amount, err = parseAmount(args[0]); err != nil {
			return Command{}, err
		}
		cmd.Recipient = args[1]
		if len(args) == 3 {
			cmd.Label, err = strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("label %q is not an integer", args[2])
			}
		}
	case "checkpoint", "rollback", "balance", "cohort", "labels", "status", "latest", "help", "exit", "quit":
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", cmd.Name)
		}
	default:
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not an integer", s)
	}
	return v, nil
}

// Console reads commands from in and renders results to out.
type Console struct {
	client  *Client
	in      io.Reader
	out     io.Writer
	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	failure *pterm.PrefixPrinter
}

func New(client *Client, in io.Reader, out io.Writer) *Console {
	return &Console{
		client:  client,
		in:      in,
		out:     out,
		info:    pterm.Info.WithWriter(out),
		success: pterm.Success.WithWriter(out),
		failure: pterm.Error.WithWriter(out),
	}
}

// Run processes lines until exit, end of input or ctx is done. A failing
// command is reported and the prompt continues.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, pterm.LightCyan("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			c.failure.Println(err.Error())
			continue
		}
		if cmd.Name == "exit" || cmd.Name == "quit" {
			return nil
		}
		if err := c.Execute(ctx, cmd); err != nil {
			c.failure.Println(err.Error())
		}
	}
}

// Execute runs one command against the customer.
func (c *Console) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case "deposit":
		balance, err := c.client.Deposit(ctx, cmd.Amount)
		if err != nil {
			return err
		}
		c.success.Printfln("deposited %d, balance %d", cmd.Amount, balance)
	case "withdraw":
		balance, err := c.client.Withdraw(ctx, cmd.Amount)
		if err != nil {
			return err
		}
		c.success.Printfln("withdrew %d, balance %d", cmd.Amount, balance)
	case "transfer", "lost-transfer":
		lost := cmd.Name == "lost-transfer"
		balance, err := c.client.Transfer(ctx, models.TransferRequest{
			Amount: cmd.Amount, Recipient: cmd.Recipient, Label: cmd.Label, Lost: lost,
		})
		if err != nil {
			return err
		}
		if lost {
			c.info.Printfln("sent %d to %s into the void, balance %d", cmd.Amount, cmd.Recipient, balance)
		} else {
			c.success.Printfln("sent %d to %s, balance %d", cmd.Amount, cmd.Recipient, balance)
		}
	case "checkpoint":
		cp, err := c.client.Checkpoint(ctx)
		if err != nil {
			return err
		}
		c.success.Printfln("checkpoint %s permanent", cp.ID)
		c.renderCheckpoint(cp)
	case "rollback":
		cp, err := c.client.Rollback(ctx)
		if err != nil {
			return err
		}
		c.success.Printfln("rolled back to checkpoint %s", cp.ID)
		c.renderCheckpoint(cp)
	case "latest":
		cp, err := c.client.LatestCheckpoint(ctx)
		if err != nil {
			return err
		}
		c.renderCheckpoint(cp)
	case "balance":
		balance, err := c.client.Balance(ctx)
		if err != nil {
			return err
		}
		c.info.Printfln("balance %d", balance)
	case "cohort":
		cohort, err := c.client.Cohort(ctx)
		if err != nil {
			return err
		}
		data := pterm.TableData{{"Name", "Address", "Port", "Peer port"}}
		for _, p := range cohort {
			data = append(data, []string{p.Name, p.Address, strconv.Itoa(p.Port), strconv.Itoa(p.PeerPort)})
		}
		return c.table(data)
	case "labels":
		labels, err := c.client.Labels(ctx)
		if err != nil {
			return err
		}
		peers := make([]string, 0, len(labels))
		for p := range labels {
			peers = append(peers, p)
		}
		sort.Strings(peers)
		data := pterm.TableData{{"Peer", "Base", "First sent", "Last sent", "Last recv"}}
		for _, p := range peers {
			l := labels[p]
			data = append(data, []string{p, fmtInt(l.Base), fmtInt(l.FirstSent), fmtInt(l.LastSent), fmtInt(l.LastRecv)})
		}
		return c.table(data)
	case "status":
		s, err := c.client.Status(ctx)
		if err != nil {
			return err
		}
		c.info.Printfln("%s balance %d epoch %d executing %t checkpoint %s rollback %s",
			s.Name, s.Balance, s.Epoch, s.Executing, s.Checkpoint, s.Rollback)
	case "help":
		fmt.Fprintln(c.out, usage)
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
	return nil
}

func (c *Console) renderCheckpoint(cp *models.Checkpoint) {
	if cp == nil {
		return
	}
	data := pterm.TableData{{"Name", "Balance", "Address", "Port", "Peer port"}}
	for _, row := range cp.Rows() {
		data = append(data, strings.Fields(row))
	}
	_ = c.table(data)
}

func (c *Console) table(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(c.out).WithData(data).Render()
}

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
