package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
	// RetryAfter is set on not-yet-ready reveals, in seconds.
	RetryAfter int64 `json:"retry_after,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// ConstantsResponse mirrors the contract parameters clients need to render
// forms without hardcoding them.
type ConstantsResponse struct {
	ChainID              int64  `json:"chain_id"`
	Contract             string `json:"contract"`
	ExplorerURL          string `json:"explorer_url,omitempty"`
	ContractURL          string `json:"contract_url,omitempty"`
	TxURLTemplate        string `json:"tx_url_template,omitempty"`
	MinYears             int    `json:"min_years"`
	MaxYears             int    `json:"max_years"`
	PricePerYearWei      string `json:"price_per_year_wei"`
	PricePerMonthWei     string `json:"price_per_month_wei"`
	MaxRefundWei         string `json:"max_refund_wei"`
	PalindromeMultiplier int    `json:"palindrome_multiplier"`
	MinCommitmentAge     int64  `json:"min_commitment_age_seconds"`
	MaxCommitmentAge     int64  `json:"max_commitment_age_seconds"`
	GracePeriod          int64  `json:"grace_period_seconds"`
	PremiumPeriod        int64  `json:"premium_period_seconds"`
	AnyonePeriod         int64  `json:"anyone_period_seconds"`
	TransferPenalty      int64  `json:"transfer_penalty_seconds"`
	BasePendingPeriod    int64  `json:"base_pending_period_seconds"`
	MinPendingPeriod     int64  `json:"min_pending_period_seconds"`
	MaxInbox             int    `json:"max_inbox"`
}
