package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	digits       = "0123456789"
	alphanumeric = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

func randomString(alphabet string, n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		buf[i] = alphabet[d.Int64()]
	}
	return string(buf), nil
}

// NumericCode returns n random decimal digits, used for emailed codes.
func NumericCode(n int) (string, error) {
	return randomString(digits, n)
}

// ReadableID returns prefix followed by n unambiguous upper-case characters,
// e.g. PAT-7KQ2MX.
func ReadableID(prefix string, n int) (string, error) {
	s, err := randomString(alphanumeric, n)
	if err != nil {
		return "", err
	}
	return prefix + s, nil
}
