package service

import (
	"github.com/finbridge/plaid-link-go/internal/util"
)

// TokenCipher encrypts access tokens before they reach the items table.
// With an empty key it passes tokens through unchanged; config.Validate
// warns about that in production.
type TokenCipher struct {
	hexKey string
}

func NewTokenCipher(hexKey string) *TokenCipher {
	return &TokenCipher{hexKey: hexKey}
}

func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if c.hexKey == "" {
		return plaintext, nil
	}
	return util.Encrypt(c.hexKey, plaintext)
}

func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if c.hexKey == "" {
		return ciphertext, nil
	}
	return util.Decrypt(c.hexKey, ciphertext)
}
