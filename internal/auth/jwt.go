package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Member roles carried in tokens.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Claims identifies an organization member. The subject is the member id.
type Claims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// Org returns the organization id carried by the token.
func (c *Claims) Org() (uuid.UUID, error) {
	id, err := uuid.Parse(c.OrgID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("token has no organization")
	}
	return id, nil
}

// JWTManager handles issuing and verifying HMAC signed tokens.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager constructs a manager with the given secret and token lifetime.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken signs a token for a member of an organization.
func (m *JWTManager) GenerateToken(memberID string, orgID uuid.UUID, email, role string) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("jwt secret must not be empty")
	}
	if orgID == uuid.Nil {
		return "", errors.New("organization id must not be empty")
	}
	if role == "" {
		role = RoleMember
	}

	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrgID: orgID.String(),
		Email: email,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	return signed, nil
}

// ParseToken verifies the token signature and payload integrity.
func (m *JWTManager) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if _, err := claims.Org(); err != nil {
		return nil, err
	}

	return claims, nil
}
