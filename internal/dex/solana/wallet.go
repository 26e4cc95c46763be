package solana

import (
	"errors"
	"strings"

	solana "github.com/gagliardetto/solana-go"
)

// ParsePrivateKey decodes a base58 secret key.
func ParsePrivateKey(b58 string) (solana.PrivateKey, error) {
	b58 = strings.TrimSpace(b58)
	if b58 == "" {
		return nil, errors.New("empty private key")
	}
	return solana.PrivateKeyFromBase58(b58)
}
