package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a credential token's signature and expiry and returns the
// embedded subject identifier.
type Verifier interface {
	Verify(token string) (subject string, err error)
}

// HMACVerifier validates HS256-family session tokens issued by the
// application with a shared secret.
type HMACVerifier struct {
	secret []byte
}

var _ Verifier = (*HMACVerifier)(nil)

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	subject, err := claims.GetSubject()
	if err == nil && subject != "" {
		return subject, nil
	}
	// Older application tokens carry the subject as "userId".
	if legacy, ok := claims["userId"].(string); ok && legacy != "" {
		return legacy, nil
	}
	return "", fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
}
