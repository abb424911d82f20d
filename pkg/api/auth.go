package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerKey = "owner_id"

// NewToken issues an HS256 token for subject, valid for ttl.
func NewToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken verifies tokenString and returns its subject.
func parseToken(tokenString, secret, issuer string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("invalid token: missing subject")
	}
	return subject, nil
}

// jwtAuth verifies the bearer token and stores its subject as the owner.
//
// An explicit userId query parameter that disagrees with the token is
// rejected the same way as a bad token.
func jwtAuth(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if header == "" || !ok || tokenString == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		owner, err := parseToken(tokenString, secret, issuer)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		if claimed := c.Query("userId"); claimed != "" && claimed != owner {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// claimMatches reports whether a userId supplied in a body or form is
// absent or equal to the authenticated owner.
func claimMatches(c *gin.Context, claimed string) bool {
	return claimed == "" || claimed == ownerID(c)
}
