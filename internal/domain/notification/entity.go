package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeClaimApproved       Type = "claim_approved"       // Claimant: sponsor or owner approved
	TypeClaimPaid           Type = "claim_paid"           // Claimant: funds are held
	TypeClaimInProgress     Type = "claim_in_progress"    // Sponsor: pickup confirmed
	TypeClaimDelivered      Type = "claim_delivered"      // Both: funds captured
	TypeClaimCanceled       Type = "claim_canceled"       // Counterparty of the canceller
	TypeTopUpReceived       Type = "top_up_received"      // Wallet owner: bank deposit credited
	TypeWithdrawalCompleted Type = "withdrawal_completed" // Wallet owner
	TypeWithdrawalFailed    Type = "withdrawal_failed"    // Wallet owner: gateway rejected
)

// Event is one notification addressed to a user.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      Type              `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewEvent(userID uuid.UUID, t Type, data map[string]string) *Event {
	return &Event{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      t,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}
