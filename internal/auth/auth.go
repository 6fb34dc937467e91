package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const clientIDKey contextKey = "client_id"

const issuer = "roastbattle"

// Claims identify an anonymous browser session. Each client id owns one
// battle engine on the server.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// IssueClientToken mints a fresh client id and a token for it.
func IssueClientToken(secret string, ttl time.Duration) (string, string, error) {
	clientID := uuid.NewString()
	token, err := CreateToken(secret, clientID, ttl)
	if err != nil {
		return "", "", err
	}
	return token, clientID, nil
}

func CreateToken(secret, clientID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   clientID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid || claims.ClientID == "" {
		return Claims{}, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware accepts a Bearer header, or a token query parameter for
// websocket upgrades where browsers cannot set headers.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := tokenFromRequest(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := ParseToken(secret, raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), clientIDKey, claims.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
			return token, nil
		}
		return "", errors.New("missing auth header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid auth header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": strings.TrimSpace(message)})
}

func ClientIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(clientIDKey).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
