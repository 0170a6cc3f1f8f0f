package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
	"github.com/neuroleaf/neuroleaf-api/pkg/res"
)

const (
	// ContextAccountIDKey is where RequireAuth stores the authenticated
	// account id for handlers.
	ContextAccountIDKey = "accountID"
	// ContextEmailKey holds the token's email claim, used for
	// first-contact account bootstrap.
	ContextEmailKey = "accountEmail"
	// ContextNameKey holds the token's display-name claim.
	ContextNameKey = "accountName"

	authHeaderPrefix = "Bearer "
)

// TokenClaims are the JWT claims issued by the identity provider. Subject
// carries the account id.
type TokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// TokenValidator parses and verifies a bearer token.
type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// JWTMiddleware guards routes behind bearer-token auth.
type JWTMiddleware struct {
	validator TokenValidator
	log       *logger.Logger
}

func NewJWTMiddleware(validator TokenValidator, log *logger.Logger) *JWTMiddleware {
	return &JWTMiddleware{validator: validator, log: log}
}

func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.handleAuthError(c, "missing authorization token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, fmt.Sprintf("token validation failed: %v", err))
			return
		}

		accountID, err := uuid.Parse(claims.Subject)
		if err != nil {
			m.handleAuthError(c, "account id (sub) missing or malformed in token")
			return
		}

		c.Set(ContextAccountIDKey, accountID)
		c.Set(ContextEmailKey, claims.Email)
		c.Set(ContextNameKey, claims.Name)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("Authentication failed", "path", c.Request.URL.Path, "reason", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{Error: message}, http.StatusUnauthorized)
	c.Abort()
}

// AccountID extracts the authenticated account id placed by RequireAuth.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(ContextAccountIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}

// HMACTokenValidator validates HS256-signed tokens with a shared secret.
type HMACTokenValidator struct {
	Secret []byte
}

func (v *HMACTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
