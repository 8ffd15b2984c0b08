package claim

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/cargolink/escrow-api/internal/pkg/password"
)

const codeLength = 6

// Codes are the plaintext one-time codes issued when a claim is paid. They
// are returned once to the sponsor and only their hashes are stored.
type Codes struct {
	Confirmation string `json:"confirmation_code"`
	Delivery     string `json:"delivery_code"`
}

type hashedCodes struct {
	plain        Codes
	confirmation string
	delivery     string
}

// generateCode draws each digit uniformly from crypto/rand.
func generateCode() (string, error) {
	b := make([]byte, codeLength)
	ten := big.NewInt(10)
	for i := range b {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}

func issueCodes(h *password.Hasher) (*hashedCodes, error) {
	confirmation, err := generateCode()
	if err != nil {
		return nil, err
	}
	delivery, err := generateCode()
	if err != nil {
		return nil, err
	}
	for delivery == confirmation {
		if delivery, err = generateCode(); err != nil {
			return nil, err
		}
	}

	out := &hashedCodes{plain: Codes{Confirmation: confirmation, Delivery: delivery}}
	if out.confirmation, err = h.Hash(confirmation); err != nil {
		return nil, fmt.Errorf("hash confirmation code: %w", err)
	}
	if out.delivery, err = h.Hash(delivery); err != nil {
		return nil, fmt.Errorf("hash delivery code: %w", err)
	}
	return out, nil
}
