package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSubject = errors.New("invalid token subject")

// Principal is the identity carried by an access token.
type Principal struct {
	UserID int64
	Role   string
}

type accessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService wraps JWT creation and validation. Tokens are issued by the
// identity service; this service only needs to verify them, and issues its
// own for tooling and tests.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// CreateForUser creates a JWT for the given user using the default TTL.
func (t *TokenService) CreateForUser(userID int64, role string) (string, error) {
	return t.CreateWithTTL(userID, role, t.expiresIn)
}

// CreateWithTTL creates a JWT for the given user with an explicit TTL.
func (t *TokenService) CreateWithTTL(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns the principal it names.
func (t *TokenService) Parse(tokenStr string) (Principal, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, jwt.ErrSignatureInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, ErrInvalidSubject
	}
	return Principal{UserID: id, Role: claims.Role}, nil
}
