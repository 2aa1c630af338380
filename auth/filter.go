package auth

import (
	"errors"
	"net/http"
	"strings"

	restful "github.com/emicklei/go-restful/v3"
)

const claimsAttribute = "claims"

var ErrInvalidHeader = errors.New("invalid authorization header format")

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
// An empty header yields ErrMissingToken.
func ParseBearer(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidHeader
	}
	return parts[1], nil
}

// Authenticate resolves the caller of an Authorization header value.
// It returns (nil, ErrMissingToken) for anonymous requests.
func (ti *TokenIssuer) Authenticate(authHeader string) (*Claims, error) {
	tokenString, err := ParseBearer(authHeader)
	if err != nil {
		return nil, err
	}
	return ti.Verify(tokenString)
}

// RequireAuth rejects requests without a valid token.
func (ti *TokenIssuer) RequireAuth() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		claims, err := ti.Authenticate(req.HeaderParameter("Authorization"))
		if err != nil {
			writeUnauthorized(resp, err)
			return
		}
		req.SetAttribute(claimsAttribute, claims)
		chain.ProcessFilter(req, resp)
	}
}

// OptionalAuth lets anonymous requests through but rejects a token that is
// present and invalid. Used by mutating routes open to guests.
func (ti *TokenIssuer) OptionalAuth() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		claims, err := ti.Authenticate(req.HeaderParameter("Authorization"))
		switch {
		case err == nil:
			req.SetAttribute(claimsAttribute, claims)
		case errors.Is(err, ErrMissingToken):
		default:
			writeUnauthorized(resp, err)
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

// LenientAuth treats any token problem as an anonymous request. Used by read routes.
func (ti *TokenIssuer) LenientAuth() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if claims, err := ti.Authenticate(req.HeaderParameter("Authorization")); err == nil {
			req.SetAttribute(claimsAttribute, claims)
		}
		chain.ProcessFilter(req, resp)
	}
}

// ClaimsFrom returns the caller stored by one of the filters, or nil for anonymous.
func ClaimsFrom(req *restful.Request) *Claims {
	claims, _ := req.Attribute(claimsAttribute).(*Claims)
	return claims
}

func writeUnauthorized(resp *restful.Response, err error) {
	message := "Invalid token"
	switch {
	case errors.Is(err, ErrMissingToken):
		message = "Authorization header required"
	case errors.Is(err, ErrInvalidHeader):
		message = "Invalid authorization header format"
	case errors.Is(err, ErrTokenExpired):
		message = "Token is expired"
	case errors.Is(err, ErrInvalidSignature):
		message = "Invalid token signature"
	}
	_ = resp.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": message}, restful.MIME_JSON)
}
