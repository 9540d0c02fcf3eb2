// server/internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"freshchain-ledger-server/internal/ledger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Account roles. They gate account management only; ledger roles live in the ledger registry.
const (
	AccountRoleAdmin  = "admin"
	AccountRoleMember = "member"
)

// bcrypt cost used for stored passwords.
const passwordCost = 12

// JWTClaims defines the payload for the JWT.
type JWTClaims struct {
	Email       string `json:"email"`
	Address     string `json:"address"`
	AccountRole string `json:"accountRole"`
	jwt.RegisteredClaims
}

// Hashing
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// JWT Generation
func (i *TokenIssuer) Generate(email string, address ledger.Address, accountRole string) (string, error) {
	now := i.now()
	claims := &JWTClaims{
		Email:       email,
		Address:     address.Hex(),
		AccountRole: accountRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse validates tokenString and returns its claims together with the ledger address they
// carry.
func (i *TokenIssuer) Parse(tokenString string) (*JWTClaims, ledger.Address, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, ledger.ZeroAddress, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	caller, err := ledger.ParseAddress(claims.Address)
	if err != nil || caller == ledger.ZeroAddress {
		return nil, ledger.ZeroAddress, fmt.Errorf("%w: bad address claim", ErrInvalidToken)
	}
	return claims, caller, nil
}
