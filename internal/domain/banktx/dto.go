package banktx

type WithdrawRequest struct {
	Reference   string `json:"reference" validate:"required,max=200"`
	WalletID    string `json:"wallet_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,amount"`
	Destination string `json:"destination" validate:"required,max=255"`
}

// IncomingWebhook is the gateway's deposit notification.
type IncomingWebhook struct {
	GatewayRef string `json:"gateway_ref" validate:"required,max=200"`
	WalletID   string `json:"wallet_id" validate:"required,uuid"`
	Amount     string `json:"amount" validate:"required,amount"`
	Currency   string `json:"currency" validate:"omitempty,currency"`
}

// PayoutWebhook is the gateway's payout status callback.
type PayoutWebhook struct {
	Reference string `json:"reference" validate:"required,max=200"`
	Status    string `json:"status" validate:"required"`
	Reason    string `json:"reason"`
}
