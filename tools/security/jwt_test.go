package security

import (
	"testing"
	"time"

	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerify(t *testing.T) {
	opts := DefaultOptions([]byte("s3cret"))
	tok, exp, err := Generate(opts, "u1", "alice")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := Verify(opts, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyRejects(t *testing.T) {
	opts := DefaultOptions([]byte("s3cret"))
	tok, _, err := Generate(opts, "u1", "")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("other")), tok)
	assert.True(t, errs.Is(err, errs.ErrIdentityMismatch))

	expired := opts
	expired.TTL = time.Nanosecond
	old, _, err := Generate(expired, "u1", "")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = Verify(opts, old)
	assert.Error(t, err)
}

func TestUnsupportedAlg(t *testing.T) {
	opts := DefaultOptions([]byte("k"))
	opts.Alg = "RS256"
	_, _, err := Generate(opts, "u1", "")
	assert.True(t, errs.Is(err, errs.ErrArgs))
}
