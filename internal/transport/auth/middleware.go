package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the authenticated member taken from the JWT. Group and role
// claims are a convenience for logging; authorization always re-reads the
// member row, so a stale token cannot keep revoked permissions alive.
type Principal struct {
	MemberID uuid.UUID
	GroupID  *uuid.UUID
	Role     domain.Role
}

type claims struct {
	GroupID string `json:"group_id,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the member.
func IssueToken(secret []byte, m *domain.Member, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role: string(m.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.GroupID != nil {
		c.GroupID = m.GroupID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Middleware authenticates requests with a bearer token, falling back to the
// token query parameter for websocket connections where headers are awkward.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := parseToken(secret, raw)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(secret []byte, raw string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	memberID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	p := &Principal{
		MemberID: memberID,
		Role:     domain.Role(c.Role),
	}
	if c.GroupID != "" {
		gid, err := uuid.Parse(c.GroupID)
		if err != nil {
			return nil, fmt.Errorf("invalid group claim: %w", err)
		}
		p.GroupID = &gid
	}
	return p, nil
}

// GetPrincipal returns the authenticated member from the request context.
func GetPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok {
		return nil, fmt.Errorf("principal not found in context")
	}
	return p, nil
}
