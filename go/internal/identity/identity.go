// Package identity issues and verifies the HS256 tokens that gate the
// operator-only auction controls and identify buyers on bid requests.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

type Role string

const (
	RoleOperator Role = "operator"
	RoleBuyer    Role = "buyer"
)

var ErrInvalidToken = errors.New("invalid token")

// User is the authenticated principal attached to a request.
type User struct {
	ID   uuid.UUID
	Name string
	Role Role
}

type claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.StandardClaims
}

// Authenticator signs and parses tokens with a shared HS256 secret.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl}
}

func (a *Authenticator) SignToken(user User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: user.Name,
		Role: string(user.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
	})
	return token.SignedString(a.secret)
}

func (a *Authenticator) ParseToken(str string) (*User, error) {
	token, err := jwt.ParseWithClaims(str, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	c, ok := token.Claims.(*claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role := Role(c.Role)
	if role != RoleOperator && role != RoleBuyer {
		return nil, ErrInvalidToken
	}
	return &User{ID: id, Name: c.Name, Role: role}, nil
}
