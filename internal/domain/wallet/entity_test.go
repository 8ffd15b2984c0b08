package wallet

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

func TestTransactionTypeDirection(t *testing.T) {
	cases := map[TransactionType]Direction{
		TypeTopUp:       DirectionCredit,
		TypeTransferIn:  DirectionCredit,
		TypeWithdrawal:  DirectionDebit,
		TypeTransferOut: DirectionDebit,
		TypeHoldCapture: DirectionDebit,
		TypeHold:        DirectionNone,
		TypeHoldRelease: DirectionNone,
		TypeHoldCancel:  DirectionNone,
	}
	for typ, want := range cases {
		if got := typ.Direction(); got != want {
			t.Errorf("%s: expected direction %d, got %d", typ, want, got)
		}
	}

	if !TypeHold.ConsumesAvailable() {
		t.Error("hold must consume available funds")
	}
	if TypeHoldRelease.ConsumesAvailable() || TypeTopUp.ConsumesAvailable() {
		t.Error("release and top_up must not consume available funds")
	}
}

func TestCompensatingTypes(t *testing.T) {
	cases := map[TransactionType]TransactionType{
		TypeTopUp:       TypeWithdrawal,
		TypeWithdrawal:  TypeTopUp,
		TypeTransferIn:  TypeTransferOut,
		TypeTransferOut: TypeTransferIn,
		TypeHoldCapture: TypeTransferIn,
	}
	for typ, want := range cases {
		got, ok := typ.Compensating()
		if !ok || got != want {
			t.Errorf("%s: expected %s, got %s (ok=%v)", typ, want, got, ok)
		}
		if got.Direction() == typ.Direction() {
			t.Errorf("%s: compensating entry must move the balance the other way", typ)
		}
	}
	for _, typ := range []TransactionType{TypeHold, TypeHoldRelease, TypeHoldCancel} {
		if _, ok := typ.Compensating(); ok {
			t.Errorf("%s must not be reversible", typ)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusCompleted, StatusReversed},
	}
	all := []Status{StatusPending, StatusCompleted, StatusFailed, StatusReversed}

	isAllowed := func(from, to Status) bool {
		for _, p := range allowed {
			if p[0] == from && p[1] == to {
				return true
			}
		}
		return false
	}

	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != isAllowed(from, to) {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, isAllowed(from, to), got)
			}
		}
	}
}

func TestNewEntryValidation(t *testing.T) {
	walletID := uuid.New()
	valid := EntryParams{WalletID: walletID, Type: TypeTopUp, Amount: decimal.RequireFromString("10.50"), Reference: "ref-1"}

	entry, err := NewEntry(valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != StatusCompleted || entry.ID == uuid.Nil {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if !entry.Delta().Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("unexpected delta %s", entry.Delta())
	}

	bad := []struct {
		name string
		mut  func(p *EntryParams)
		want error
	}{
		{"zero amount", func(p *EntryParams) { p.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(p *EntryParams) { p.Amount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"three decimals", func(p *EntryParams) { p.Amount = decimal.RequireFromString("0.001") }, ErrInvalidAmount},
		{"empty reference", func(p *EntryParams) { p.Reference = "" }, ErrInvalidReference},
		{"unknown type", func(p *EntryParams) { p.Type = "gift" }, ErrInvalidType},
		{"pending credit", func(p *EntryParams) { p.Pending = true }, ErrInvalidType},
		{"bad currency", func(p *EntryParams) { p.Currency = "BTC" }, ErrCurrencyMismatch},
	}
	for _, tc := range bad {
		p := valid
		tc.mut(&p)
		if _, err := NewEntry(p); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if !errors.Is(ErrInvalidAmount, money.ErrInvalidAmount) {
		t.Error("ErrInvalidAmount should wrap money.ErrInvalidAmount")
	}
}

func TestPendingWithdrawalHasNoDeltaUntilSettled(t *testing.T) {
	entry, err := NewEntry(EntryParams{
		WalletID:  uuid.New(),
		Type:      TypeWithdrawal,
		Amount:    decimal.NewFromInt(200),
		Reference: "bank:wd-1",
		Pending:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != StatusPending {
		t.Fatalf("expected pending, got %s", entry.Status)
	}
	if !entry.Delta().Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected -200 delta once settled, got %s", entry.Delta())
	}
}

func TestSameRequest(t *testing.T) {
	a, _ := NewEntry(EntryParams{WalletID: uuid.New(), Type: TypeTopUp, Amount: decimal.RequireFromString("5"), Reference: "r"})
	b := *a
	b.Amount = decimal.RequireFromString("5.00")
	if !a.sameRequest(&b) {
		t.Fatal("5 and 5.00 are the same amount")
	}
	b.Amount = decimal.RequireFromString("5.01")
	if a.sameRequest(&b) {
		t.Fatal("different amounts must not match")
	}
}

func TestMetadataScanValue(t *testing.T) {
	var m Metadata
	if err := m.Scan([]byte(`{"reason":"chargeback"}`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if m["reason"] != "chargeback" {
		t.Fatalf("unexpected metadata %v", m)
	}

	v, err := Metadata(nil).Value()
	if err != nil || v != "{}" {
		t.Fatalf("expected {} for nil metadata, got %v (%v)", v, err)
	}
}
