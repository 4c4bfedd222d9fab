package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what the rest of the application sees: who is calling and in
// which role. It drives authorization decisions only, never slot-conflict
// decisions.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// Verifier checks HS256 bearer tokens. Token issuance lives in the identity
// provider; this service only verifies. Sign exists for the seed and
// simulation tooling.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign mints a token for userID in role, valid for 24 hours.
func (v *Verifier) Sign(userID uuid.UUID, role string) (string, error) {
	claims := &Claims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates a token string and extracts the caller's identity.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: userID, Role: claims.Role}, nil
}
