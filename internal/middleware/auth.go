package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pollengine/internal/domain"
	apperrors "pollengine/pkg/errors"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is what the bearer token resolved to, plus a stable fallback
// key for unauthenticated visitors so anonymous polls can still detect
// duplicate submissions.
type Identity struct {
	Authenticated bool
	Subject       string
	DisplayName   string
	Admin         bool
}

// Claims are the accepted JWT claims.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Require rejects requests without a valid bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.claimsFromRequest(r)
		if err != nil {
			writeAuthError(w, apperrors.NewAuthenticationError("invalid or missing token"))
			return
		}
		ctx := withIdentity(r.Context(), identityFromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional resolves a bearer token when present and falls back to a
// visitor identity derived from the client address otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := Identity{Subject: visitorID(r)}
		if claims, err := a.claimsFromRequest(r); err == nil {
			identity = identityFromClaims(claims)
		}
		ctx := withIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) claimsFromRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing authorization header")
	}
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}
	return a.parse(tokenString)
}

// writeAuthError emits the same error envelope the handlers use, so
// middleware rejections are indistinguishable on the wire.
func writeAuthError(w http.ResponseWriter, appErr *apperrors.AppError) {
	var resp apperrors.ErrorResponse
	resp.Error.Type = appErr.Type
	resp.Error.Message = appErr.Message
	resp.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func identityFromClaims(claims *Claims) Identity {
	return Identity{
		Authenticated: true,
		Subject:       claims.Subject,
		DisplayName:   claims.Name,
		Admin:         claims.Admin || claims.Role == "admin",
	}
}

// visitorID derives a stable pseudo-identity for unauthenticated clients.
// Header spoofing only lets a client vote more than once under different
// identities on polls that chose not to require authentication.
func visitorID(r *http.Request) string {
	if v := r.Header.Get("X-Visitor-ID"); v != "" {
		return "visitor:" + v
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return "addr:" + first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom extracts the request identity. The zero Identity is
// returned when no auth middleware ran.
func IdentityFrom(ctx context.Context) Identity {
	identity, _ := ctx.Value(identityKey).(Identity)
	return identity
}

// VoterContext converts the request identity for eligibility evaluation.
func (id Identity) VoterContext() domain.VoterContext {
	return domain.VoterContext{
		Authenticated: id.Authenticated,
		VoterID:       id.Subject,
		DisplayName:   id.DisplayName,
		Admin:         id.Admin,
	}
}

// ViewerContext converts the request identity for visibility resolution.
func (id Identity) ViewerContext() domain.ViewerContext {
	return domain.ViewerContext{
		Authenticated: id.Authenticated,
		ViewerID:      id.Subject,
		Admin:         id.Admin,
	}
}
