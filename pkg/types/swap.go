package types

import "time"

// SwapOrder is a swap described on the command line, e.g.
// "1000 USDT on AssetHub to USDC on Hydration"
type SwapOrder struct {
	Amount      string
	SourceToken string
	TargetToken string
	SourceChain string
	TargetChain string
}

// SwapView is the JSON shape printed by the swap commands
type SwapView struct {
	ID             uint32    `json:"id"`
	Initiator      string    `json:"initiator"`
	SourceToken    string    `json:"source_token"`
	TargetToken    string    `json:"target_token"`
	SourceChain    string    `json:"source_chain"`
	TargetChain    string    `json:"target_chain"`
	Via            []string  `json:"via,omitempty"`
	InputAmount    string    `json:"input_amount"`
	ExpectedOutput string    `json:"expected_output"`
	CurrentStep    uint32    `json:"current_step"`
	TotalSteps     uint32    `json:"total_steps"`
	Status         string    `json:"status"`
	Deadline       time.Time `json:"deadline"`
	TimedOut       bool      `json:"timed_out"`
	PendingNonce   uint64    `json:"pending_nonce,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
}

// PaymentView is the JSON shape printed by the payment commands
type PaymentView struct {
	ID             uint32  `json:"id"`
	Customer       string  `json:"customer"`
	Merchant       string  `json:"merchant"`
	CustomerToken  string  `json:"customer_token"`
	CustomerChain  string  `json:"customer_chain"`
	MerchantAsset  string  `json:"merchant_asset"`
	MerchantChain  string  `json:"merchant_chain"`
	InputAmount    string  `json:"input_amount"`
	ExpectedOutput string  `json:"expected_output"`
	SwapID         *uint32 `json:"swap_id,omitempty"`
	Status         string  `json:"status"`
}
