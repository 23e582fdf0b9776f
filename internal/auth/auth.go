// Package auth issues anonymous customer sessions as signed JWTs and guards
// the customer routes with them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smartserve/internal/clock"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

const customerKey = "customerID"

// Session is an issued token and the customer it identifies.
type Session struct {
	CustomerID string    `json:"customerId"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Issuer signs and verifies session tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewIssuer creates an Issuer.
func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

// Issue starts a session. An empty customerID gets a fresh anonymous id.
func (i *Issuer) Issue(customerID string) (Session, error) {
	if customerID == "" {
		customerID = uuid.NewString()
	}
	now := i.clock.Now()
	expires := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   customerID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires.Unix(),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{CustomerID: customerID, Token: signed, ExpiresAt: expires}, nil
}

// Verify checks the token and returns the customer id it carries.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// customer id on the context.
func (i *Issuer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}
		tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

		customerID, err := i.Verify(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(customerKey, customerID)
		c.Next()
	}
}

// QueryToken lets websocket clients, which cannot set headers from a
// browser, pass the token as ?token=.
func QueryToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if token := c.Query("token"); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}

// CustomerID returns the id stored by Middleware.
func CustomerID(c *gin.Context) string {
	return c.GetString(customerKey)
}
