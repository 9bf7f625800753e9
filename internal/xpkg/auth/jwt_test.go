package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("s3cret")
	token, err := v.Sign(Claims{UserID: 9, Username: "ana", TenantID: "T1", Role: RoleKitchen}, time.Hour)
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)
	assert.Equal(t, "T1", claims.TenantID)
	assert.True(t, claims.IsStaff())
	assert.True(t, claims.IsPrivileged())
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("s3cret")
	other := NewVerifier("other")

	forged, err := other.Sign(Claims{TenantID: "T1", Role: RoleManager}, time.Hour)
	require.NoError(t, err)
	expired, err := v.Sign(Claims{TenantID: "T1", Role: RoleManager}, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"wrong secret", forged, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRoles(t *testing.T) {
	assert.False(t, (&Claims{Role: "superadmin"}).IsStaff())
	assert.True(t, (&Claims{Role: RoleRider}).IsStaff())
	assert.False(t, (&Claims{Role: RoleRider}).IsPrivileged())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}
