package dto

type PrepareCommitmentRequest struct {
	Name   string `json:"name"`
	Years  int    `json:"years"`
	Caller string `json:"caller"`
	// Receiver is optional; empty registers to the caller.
	Receiver string `json:"receiver,omitempty"`
}

type RenewRequest struct {
	Years int `json:"years"`
}

// CallerRequest carries the account that will sign an inbox action.
type CallerRequest struct {
	Caller string `json:"caller"`
}

type TransferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}
