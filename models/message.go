package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Command is the first token of a peer datagram.
type Command string

const (
	CmdTransfer        Command = "transfer"
	CmdTakeTentative   Command = "take-a-tentative-checkpoint"
	CmdMakePermanent   Command = "make-tentative-checkpoint-permanent"
	CmdUndoTentative   Command = "undo-tentative-checkpoint"
	CmdPrepareRollback Command = "prepare-to-rollback"
	CmdSendRollback    Command = "send-rollback"
	CmdDoNotRollback   Command = "do-not-rollback"
)

// Negotiation reports whether handling the command may fan out to other peers.
func (c Command) Negotiation() bool {
	switch c {
	case CmdTakeTentative, CmdMakePermanent, CmdUndoTentative,
		CmdPrepareRollback, CmdSendRollback, CmdDoNotRollback:
		return true
	}
	return false
}

// Message is a decoded peer request. Only the fields of its command are set.
type Message struct {
	Command   Command
	Amount    int64  // transfer
	Recipient string // transfer
	Label     int64  // transfer
	Sender    string // transfer sender, checkpoint/rollback initiator
	Count     int64  // last_recv or last_sent claimed by the initiator
	ID        string // checkpoint or rollback id
}

// Encode renders the message as space separated tokens.
func (m Message) Encode() []byte {
	var tokens []string
	switch m.Command {
	case CmdTransfer:
		tokens = []string{string(m.Command), fmtInt(m.Amount), m.Recipient, fmtInt(m.Label), m.Sender}
	case CmdTakeTentative, CmdPrepareRollback:
		tokens = []string{string(m.Command), m.Sender, fmtInt(m.Count), m.ID}
	default:
		tokens = []string{string(m.Command), m.ID}
	}
	return []byte(strings.Join(tokens, " "))
}

// ParseMessage decodes a peer datagram.
func ParseMessage(payload []byte) (Message, error) {
	tokens := strings.Fields(string(payload))
	if len(tokens) == 0 {
		return Message{}, Errorf(KindMalformed, "empty request")
	}
	m := Message{Command: Command(tokens[0])}
	args := tokens[1:]

	var err error
	switch m.Command {
	case CmdTransfer:
		if len(args) != 4 {
			return Message{}, Errorf(KindMalformed, "%s expects 4 fields, got %d", m.Command, len(args))
		}
		if m.Amount, err = parseInt(args[0]); err != nil {
			return Message{}, err
		}
		m.Recipient = args[1]
		if m.Label, err = parseInt(args[2]); err != nil {
			return Message{}, err
		}
		m.Sender = args[3]
	case CmdTakeTentative, CmdPrepareRollback:
		if len(args) != 3 {
			return Message{}, Errorf(KindMalformed, "%s expects 3 fields, got %d", m.Command, len(args))
		}
		m.Sender = args[0]
		if m.Count, err = parseInt(args[1]); err != nil {
			return Message{}, err
		}
		m.ID = args[2]
	case CmdMakePermanent, CmdUndoTentative, CmdSendRollback, CmdDoNotRollback:
		if len(args) != 1 {
			return Message{}, Errorf(KindMalformed, "%s expects 1 field, got %d", m.Command, len(args))
		}
		m.ID = args[0]
	default:
		return Message{}, Errorf(KindUnknownCommand, "%q", tokens[0])
	}
	return m, nil
}

const (
	ResSuccess = "SUCCESS"
	ResFailure = "FAILURE"
)

// Reply is the JSON result sent back for every peer request.
type Reply struct {
	Res    string `json:"res"`
	Kind   Kind   `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func Success() Reply {
	return Reply{Res: ResSuccess}
}

// Failure converts err into a failure reply, keeping its kind when it has one.
func Failure(err error) Reply {
	return Reply{Res: ResFailure, Kind: KindOf(err), Reason: err.Error()}
}

// Err turns a failure reply back into an *Error, nil on success.
func (r Reply) Err() error {
	if r.Res == ResSuccess {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = KindPeerFailure
	}
	return &Error{Kind: kind, Detail: r.Reason}
}

func (r Reply) Encode() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"res":"FAILURE","kind":"MALFORMED"}`)
	}
	return data
}

func ParseReply(payload []byte) (Reply, error) {
	var r Reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reply{}, Errorf(KindMalformed, "reply: %v", err)
	}
	if r.Res != ResSuccess && r.Res != ResFailure {
		return Reply{}, Errorf(KindMalformed, "reply: unexpected res %q", r.Res)
	}
	return r, nil
}

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, Errorf(KindMalformed, "%q is not an integer", s)
	}
	return v, nil
}
