package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-with-enough-entropy-123")

func signHMAC(t *testing.T, claims Claims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://issuer.example.com",
			Audience:  jwt.ClaimStrings{"cyphera-notify"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "Admin@Example.com",
		Name:  "Admin",
	}
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier(testSecret, "https://issuer.example.com", "cyphera-notify")

	tests := []struct {
		name        string
		token       func() string
		wantErr     bool
		wantSubject string
	}{
		{
			name:        "valid token",
			token:       func() string { return signHMAC(t, validClaims(), testSecret) },
			wantSubject: "user-123",
		},
		{
			name: "expired token",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
				return signHMAC(t, c, testSecret)
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := validClaims()
				c.Issuer = "https://evil.example.com"
				return signHMAC(t, c, testSecret)
			},
			wantErr: true,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := validClaims()
				c.Audience = jwt.ClaimStrings{"another-service"}
				return signHMAC(t, c, testSecret)
			},
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   func() string { return signHMAC(t, validClaims(), []byte("other-secret")) },
			wantErr: true,
		},
		{
			name: "no subject or email",
			token: func() string {
				c := validClaims()
				c.Subject = ""
				c.Email = ""
				return signHMAC(t, c, testSecret)
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not-a-jwt" },
			wantErr: true,
		},
		{
			name:    "empty",
			token:   func() string { return "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(context.Background(), tt.token())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, identity.Subject)
			assert.Equal(t, "admin@example.com", identity.Principal())
		})
	}
}

func TestVerifierWithGivenRSAKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"test-kid": keyfunc.NewGivenRSA(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	})
	v := NewVerifierWithKeyfunc(jwks.Keyfunc, "", "", "RS256")

	claims := validClaims()
	claims.Email = ""
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-kid"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.Principal())

	t.Run("HS256 token rejected by RS256 verifier", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signHMAC(t, validClaims(), testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIdentityPrincipal(t *testing.T) {
	assert.Equal(t, "a@x.com", Identity{Subject: "sub", Email: " A@X.com "}.Principal())
	assert.Equal(t, "sub", Identity{Subject: " sub "}.Principal())
	assert.Equal(t, "", Identity{}.Principal())
}
