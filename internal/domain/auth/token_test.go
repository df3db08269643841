package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens := NewTokens([]byte("secret"), "extraweb")
	tokens.now = func() time.Time { return fixedNow }

	raw, err := tokens.Issue(Principal{UserID: "usr_1", Role: RoleAdmin, Email: "a@b.c", Name: "Ada"}, time.Hour)
	require.NoError(t, err)

	p, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", p.UserID)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "a@b.c", p.Email)
}

func TestTokens_Verify(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	issuer := NewTokens([]byte("secret"), "extraweb")
	issuer.now = func() time.Time { return fixedNow }

	valid, err := issuer.Issue(Principal{UserID: "usr_1"}, time.Hour)
	require.NoError(t, err)
	expired, err := issuer.Issue(Principal{UserID: "usr_1"}, -time.Minute)
	require.NoError(t, err)

	other := NewTokens([]byte("other"), "extraweb")
	other.now = issuer.now
	foreign, err := other.Issue(Principal{UserID: "usr_1"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "missing", raw: "", wantErr: ErrMissingToken},
		{name: "garbage", raw: "abc.def.ghi", wantErr: ErrInvalidToken},
		{name: "expired", raw: expired, wantErr: ErrTokenExpired},
		{name: "wrong secret", raw: foreign, wantErr: ErrInvalidToken},
		{name: "valid defaults to user role", raw: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := issuer.Verify(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RoleUser, p.Role)
		})
	}
}
