// Package auth validates the bearer credential presented on connect.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/dkeye/roomgate/internal/domain"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token body issued by the account service.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"userId"`
}

// Authenticator verifies HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Authenticate returns the user bound to token, or an authentication error
// whose message names the failure reason.
func (a *Authenticator) Authenticate(token string) (domain.UserID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, apperrors.AuthenticationError(ReasonMissing, nil)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return 0, mapJWTError(err)
	}
	if claims.UserID <= 0 {
		return 0, apperrors.AuthenticationError(ReasonMalformed, errors.New("userId claim is missing"))
	}
	return domain.UserID(claims.UserID), nil
}

// Rejection reasons, also used as metric labels.
const (
	ReasonMissing   = "missing token"
	ReasonMalformed = "malformed token"
	ReasonExpired   = "expired token"
	ReasonSignature = "invalid signature"
	ReasonInvalid   = "invalid token"
)

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.AuthenticationError(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.AuthenticationError(ReasonSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperrors.AuthenticationError(ReasonMalformed, err)
	default:
		return apperrors.AuthenticationError(ReasonInvalid, err)
	}
}

// Reason extracts the rejection reason from an Authenticate error.
func Reason(err error) string {
	if e := apperrors.AsError(err); e != nil && e.Type == apperrors.TypeAuthentication {
		return e.Message
	}
	return ReasonInvalid
}

// IssueToken signs a token for userID. The gateway never issues tokens to
// clients; tools and tests use it to mint credentials.
func IssueToken(secret string, userID domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: int64(userID),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
