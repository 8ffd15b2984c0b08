package claim

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

func TestNextTransitionTable(t *testing.T) {
	allowed := map[Action]map[Status]Status{
		ActionApprove:  {StatusPending: StatusApproved},
		ActionMarkPaid: {StatusApproved: StatusPaid},
		ActionStart:    {StatusPaid: StatusInProgress},
		ActionDeliver:  {StatusInProgress: StatusDelivered},
		ActionCancel:   {StatusPending: StatusCanceled, StatusApproved: StatusCanceled, StatusPaid: StatusCanceled},
	}
	statuses := []Status{StatusPending, StatusApproved, StatusPaid, StatusInProgress, StatusDelivered, StatusCanceled}

	for action, ok := range allowed {
		for _, from := range statuses {
			to, err := Next(from, action)
			if want, legal := ok[from]; legal {
				require.NoError(t, err, "%s from %s", action, from)
				assert.Equal(t, want, to)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", action, from)
		}
	}
}

func TestTerminalClaimsRejectApprove(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCanceled} {
		assert.True(t, s.Terminal())
		_, err := Next(s, ActionApprove)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestDeliverBeforeStartFails(t *testing.T) {
	_, err := Next(StatusPaid, ActionDeliver)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNewClaimValidates(t *testing.T) {
	base := NewClaimParams{
		ProjectID:  uuid.New(),
		ClaimantID: uuid.New(),
		SponsorID:  uuid.New(),
		Amount:     decimal.RequireFromString("250.50"),
		Currency:   money.KZT,
		Weight:     decimal.RequireFromString("12.5"),
	}

	c, err := NewClaim(base)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, c.Status)
	assert.Nil(t, c.HoldID)
	assert.False(t, c.ConfirmationCodeHash.Valid)

	cases := map[string]struct {
		mutate func(p *NewClaimParams)
		want   error
	}{
		"zero amount":    {func(p *NewClaimParams) { p.Amount = decimal.Zero }, ErrInvalidAmount},
		"fine amount":    {func(p *NewClaimParams) { p.Amount = decimal.RequireFromString("1.001") }, ErrInvalidAmount},
		"self sponsored": {func(p *NewClaimParams) { p.SponsorID = p.ClaimantID }, ErrSelfSponsored},
		"no project":     {func(p *NewClaimParams) { p.ProjectID = uuid.Nil }, ErrMissingParty},
		"bad currency":   {func(p *NewClaimParams) { p.Currency = "BTC" }, ErrInvalidCurrency},
		"neg weight":     {func(p *NewClaimParams) { p.Weight = decimal.NewFromInt(-1) }, ErrInvalidWeight},
	}
	for name, tc := range cases {
		p := base
		tc.mutate(&p)
		_, err := NewClaim(p)
		assert.ErrorIs(t, err, tc.want, name)
	}
}
