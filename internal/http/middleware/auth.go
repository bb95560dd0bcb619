package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/dentalcrm/internal/http/respond"
	"github.com/wolfman30/dentalcrm/internal/operator"
)

type contextKey string

const claimsKey contextKey = "operatorClaims"

// OperatorClaims are the JWT claims issued to clinic staff. Name is shown in audit
// entries; Subject is used when Name is empty.
type OperatorClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// OperatorJWT enforces an HMAC-signed JWT and stores the operator in the request context.
func OperatorJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "operator auth disabled")
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := OperatorClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid token")
				return
			}
			name := strings.TrimSpace(claims.Name)
			if name == "" {
				name = claims.Subject
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = operator.WithOperator(ctx, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns operator JWT claims if present.
func ClaimsFromContext(ctx context.Context) (OperatorClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(OperatorClaims)
	return claims, ok
}
