package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseRoundTrip(t *testing.T) {
	auth := NewAuthenticator("test-secret", time.Hour)
	user := User{ID: uuid.New(), Name: "Strikers", Role: RoleBuyer}

	token, err := auth.SignToken(user)
	require.NoError(t, err)

	got, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, *got)
}

func TestParseRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator("test-secret", time.Hour)
	other := NewAuthenticator("other-secret", time.Hour)

	token, err := other.SignToken(User{ID: uuid.New(), Name: "x", Role: RoleBuyer})
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": token,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseToken(tok)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator("test-secret", -time.Minute)
	token, err := auth.SignToken(User{ID: uuid.New(), Name: "x", Role: RoleOperator})
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireOperator(t *testing.T) {
	auth := NewAuthenticator("test-secret", time.Hour)
	handler := auth.Middleware(RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	operatorToken, err := auth.SignToken(User{ID: uuid.New(), Name: "admin", Role: RoleOperator})
	require.NoError(t, err)
	buyerToken, err := auth.SignToken(User{ID: uuid.New(), Name: "Strikers", Role: RoleBuyer})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"operator allowed", "Bearer " + operatorToken, http.StatusNoContent},
		{"buyer forbidden", "Bearer " + buyerToken, http.StatusForbidden},
		{"anonymous rejected", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
