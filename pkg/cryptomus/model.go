package cryptomus

// Payment statuses the gateway reports. Paid and PaidOver settle a topup;
// the other terminal statuses fail it.
const (
	StatusPaid       = "paid"
	StatusPaidOver   = "paid_over"
	StatusFail       = "fail"
	StatusCancel     = "cancel"
	StatusSystemFail = "system_fail"
	StatusExpired    = "expired"
)

// IsTerminal reports whether the gateway will not move the payment again.
func IsTerminal(status string) bool {
	switch status {
	case StatusPaid, StatusPaidOver, StatusFail, StatusCancel, StatusSystemFail, StatusExpired:
		return true
	}
	return false
}

// IsPaid reports whether the status settles the payment.
func IsPaid(status string) bool {
	return status == StatusPaid || status == StatusPaidOver
}

type CreatePaymentRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	URLCallback string `json:"url_callback,omitempty"`
	URLReturn   string `json:"url_return,omitempty"`
	Lifetime    int    `json:"lifetime,omitempty"`
	Merchant    string `json:"merchant"`
}

type PaymentResult struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	URL     string `json:"url"`
	Status  string `json:"status"`
}

type CreatePaymentResponse struct {
	Result PaymentResult `json:"result"`
}

type PaymentInfoRequest struct {
	UUID string `json:"uuid"`
}

type PaymentInfoResponse struct {
	Result PaymentResult `json:"result"`
}
