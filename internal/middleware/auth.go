package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"apgrhost/pkg/errors"
	"apgrhost/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextKey represents a context key type
type ContextKey string

const (
	// AdminContextKey is the context key for verified admin claims
	AdminContextKey ContextKey = "admin"
	// RequestIDContextKey is the context key for request ID
	RequestIDContextKey ContextKey = "request_id"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// AdminRole is the only role allowed through AdminAuth
const AdminRole = "admin"

// AdminClaims are the JWT claims expected on admin requests
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequestID creates a middleware that adds a unique request ID to each request.
// A well-formed inbound X-Request-ID is reused.
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			log.Debug("Request started",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID stored by RequestID, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// AdminAuth creates a middleware that requires an HS256 bearer token with the admin role
func AdminAuth(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Authorization header required"), log)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Invalid authorization header format"), log)
				return
			}

			claims, err := parseAdminToken(parts[1], key)
			if err != nil {
				log.WithError(err).Debug("Admin token rejected")
				writeErrorResponse(w, r, errors.NewAuthenticationError("Invalid token"), log)
				return
			}
			if claims.Role != AdminRole {
				writeErrorResponse(w, r, errors.NewAuthorizationError("Admin role required"), log)
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseAdminToken(raw string, key []byte) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, log *logger.Logger) {
	log.WithError(appErr).Warn("Request error")
	if err := errors.WriteJSON(w, appErr, GetRequestID(r.Context())); err != nil {
		log.WithError(err).Error("Failed to write error response")
	}
}
