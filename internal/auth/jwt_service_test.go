package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(TokenConfig{Secret: "test-secret", Algorithm: "HS256", AccessTTL: 15 * time.Minute})
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TokenConfig
		wantErr bool
	}{
		{name: "defaults to HS256", cfg: TokenConfig{Secret: "s"}},
		{name: "HS512", cfg: TokenConfig{Secret: "s", Algorithm: "HS512"}},
		{name: "missing secret", cfg: TokenConfig{Algorithm: "HS256"}, wantErr: true},
		{name: "asymmetric algorithm", cfg: TokenConfig{Secret: "s", Algorithm: "RS256"}, wantErr: true},
		{name: "unknown algorithm", cfg: TokenConfig{Secret: "s", Algorithm: "none"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewJWTService(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService(t)

	token, err := svc.IssueDefault("a@x.com")
	require.NoError(t, err)

	email, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)

	email, err = svc.Validate(BearerPrefix + token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
}

func TestJWTService_IssueEmbedsOnlySubjectAndTimes(t *testing.T) {
	svc := newTestJWTService(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	token, err := svc.Issue("a@x.com", time.Hour)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", claims["sub"])
	assert.EqualValues(t, fixed.Add(time.Hour).Unix(), claims["exp"])
	assert.EqualValues(t, fixed.Unix(), claims["iat"])
	assert.Len(t, claims, 3)
}

func TestJWTService_ValidateRejects(t *testing.T) {
	svc := newTestJWTService(t)

	other, err := NewJWTService(TokenConfig{Secret: "other-secret", Algorithm: "HS256"})
	require.NoError(t, err)
	foreign, err := other.Issue("a@x.com", time.Hour)
	require.NoError(t, err)

	hs512, err := NewJWTService(TokenConfig{Secret: "test-secret", Algorithm: "HS512"})
	require.NoError(t, err)
	wrongAlg, err := hs512.Issue("a@x.com", time.Hour)
	require.NoError(t, err)

	zeroTTL, err := svc.Issue("a@x.com", 0)
	require.NoError(t, err)
	expired, err := svc.Issue("a@x.com", -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	valid, err := svc.Issue("a@x.com", time.Hour)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "bearer prefix only", token: "Bearer "},
		{name: "garbage", token: "not.a.token"},
		{name: "foreign signature", token: foreign},
		{name: "tampered signature", token: tampered},
		{name: "unexpected algorithm", token: wrongAlg},
		{name: "zero ttl", token: zeroTTL},
		{name: "expired", token: expired},
		{name: "missing subject", token: noSubject},
		{name: "missing expiry", token: noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Equal(t, ErrInvalidToken.Error(), err.Error())
			assert.Empty(t, email)
		})
	}
}
