package app

import (
	crand "crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	sessionCodeChars         = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	defaultSessionCodeLength = 6
)

// generateSessionCode returns a random, host-shareable session code drawn
// from src.
func generateSessionCode(src io.Reader, length int) (string, error) {
	if length <= 0 {
		length = defaultSessionCodeLength
	}
	limit := big.NewInt(int64(len(sessionCodeChars)))
	code := make([]byte, length)
	for i := range code {
		n, err := crand.Int(src, limit)
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		code[i] = sessionCodeChars[n.Int64()]
	}
	return string(code), nil
}

// normalizeSessionID makes codes case-insensitive, the way players type them.
func normalizeSessionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
