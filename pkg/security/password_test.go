package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct-horse")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "correct-horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong-horse"), ErrMismatch)
	assert.Error(t, h.Compare("not-a-hash", "correct-horse"))

	_, err = h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = h.Hash(strings.Repeat("x", MaxPasswordLen+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNumericCode(t *testing.T) {
	code, err := NumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestReadableID(t *testing.T) {
	id, err := ReadableID("PAT-", 6)
	require.NoError(t, err)
	assert.Regexp(t, `^PAT-[A-Z2-9]{6}$`, id)
}
