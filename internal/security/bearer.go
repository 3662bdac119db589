package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidBearer is returned when a bearer credential is malformed or invalid.
var ErrInvalidBearer = errors.New("invalid bearer credential")

// BearerClaims holds the JWT claims the gateway reads from a bearer credential.
type BearerClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id,omitempty"`
}

// BearerVerifier validates bearer credentials issued by the authentication
// service (RS256 or ES256). The gateway only verifies; it never signs.
type BearerVerifier struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// NewBearerVerifier returns a BearerVerifier checking signature, expiry,
// issuer, and audience.
func NewBearerVerifier(publicKey crypto.PublicKey, issuer, audience string) *BearerVerifier {
	return &BearerVerifier{publicKey: publicKey, issuer: issuer, audience: audience}
}

// Verify parses and validates the bearer credential. Returns the subject
// (user ID) and session ID, or ErrInvalidBearer.
func (v *BearerVerifier) Verify(tokenString string) (userID, sessionID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &BearerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return v.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return v.publicKey, nil
		}
		return nil, ErrInvalidBearer
	})
	if err != nil {
		return "", "", ErrInvalidBearer
	}
	claims, ok := token.Claims.(*BearerClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidBearer
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", "", ErrInvalidBearer
	}
	if v.audience != "" {
		audOk := false
		for _, a := range claims.Audience {
			if a == v.audience {
				audOk = true
				break
			}
		}
		if !audOk {
			return "", "", ErrInvalidBearer
		}
	}
	return claims.Subject, claims.SessionID, nil
}

// SignBearer mints a bearer credential with the given signer. Used by tests
// and local tooling; the signing method is inferred from the key type.
func SignBearer(signer crypto.Signer, issuer, audience, userID, sessionID string, ttl time.Duration) (string, error) {
	var method jwt.SigningMethod
	switch signer.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidBearer
	}
	now := time.Now().UTC()
	claims := BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
	}
	return jwt.NewWithClaims(method, claims).SignedString(signer)
}
