package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync/internal/types"
)

var testUser = &types.User{
	ID:     "u-1",
	Email:  "ada@example.com",
	Role:   types.RoleMember,
	Active: true,
}

func TestIssueAndValidate(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Hour)
	token, err := issuer.Issue(testUser)
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, types.RoleMember, claims.Role)
}

func TestValidateRejectsTampering(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Hour)
	token, err := issuer.Issue(testUser)
	require.NoError(t, err)

	// Flip a byte in the payload.
	parts := strings.SplitN(token, ".", 2)
	tampered := "x" + parts[0][1:] + "." + parts[1]
	_, err = issuer.Validate(tampered)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewIssuer([]byte("secret-a"), time.Hour).Issue(testUser)
	require.NoError(t, err)
	_, err = NewIssuer([]byte("secret-b"), time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), -time.Minute)
	token, err := issuer.Issue(testUser)
	require.NoError(t, err)
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsDeactivated(t *testing.T) {
	inactive := *testUser
	inactive.Active = false
	issuer := NewIssuer([]byte("secret"), time.Hour)
	token, err := issuer.Issue(&inactive)
	require.NoError(t, err)
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsGarbage(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Hour)
	for _, tok := range []string{"", "no-dot", "a.b", "!!!.???"} {
		_, err := issuer.Validate(tok)
		assert.ErrorIs(t, err, ErrUnauthenticated, "token %q", tok)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
}
