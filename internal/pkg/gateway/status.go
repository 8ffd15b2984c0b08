package gateway

import "strings"

// Status is the normalized outcome of a payout.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// MapStatus normalizes the gateway's vocabulary. Anything unrecognized is
// treated as pending so an unknown answer is never mistaken for a result.
func MapStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "confirmed", "completed", "success", "succeeded", "paid":
		return StatusConfirmed
	case "rejected", "failed", "declined", "canceled", "cancelled":
		return StatusRejected
	default:
		return StatusPending
	}
}
