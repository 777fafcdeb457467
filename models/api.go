package models

// AmountRequest is the body of POST /deposit and POST /withdraw.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// TransferRequest is the body of POST /transfer. Label 0 picks the next label;
// Lost withdraws and labels without sending.
type TransferRequest struct {
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Label     int64  `json:"label,omitempty"`
	Lost      bool   `json:"lost,omitempty"`
}

type BalanceResponse struct {
	Message string `json:"message,omitempty"`
	Balance int64  `json:"balance"`
}

type CheckpointResponse struct {
	Message    string      `json:"message,omitempty"`
	Checkpoint *Checkpoint `json:"checkpoint"`
	Error      string      `json:"error,omitempty"`
	Kind       Kind        `json:"kind,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind,omitempty"`
}
