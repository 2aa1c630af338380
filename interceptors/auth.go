package interceptors

import (
	"context"
	"errors"

	"board-restful/auth"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const claimsKey contextKey = "claims"

// AuthInterceptor resolves the caller of every unary RPC from the
// "authorization" metadata. Calls without a token proceed anonymously so that
// handlers can apply the same guest rules as the HTTP API; a token that is
// present but invalid fails with Unauthenticated. Methods listed in
// publicMethods skip the check entirely.
func AuthInterceptor(tokens *auth.TokenIssuer, publicMethods ...string) grpc.UnaryServerInterceptor {
	public := make(map[string]bool, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if public[info.FullMethod] {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		claims, err := tokens.Authenticate(header)
		switch {
		case err == nil:
			ctx = ContextWithClaims(ctx, claims)
		case errors.Is(err, auth.ErrMissingToken):
		case errors.Is(err, auth.ErrInvalidHeader):
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		case errors.Is(err, auth.ErrTokenExpired):
			return nil, status.Error(codes.Unauthenticated, "token is expired")
		default:
			return nil, status.Error(codes.Unauthenticated, "invalid token signature")
		}
		return handler(ctx, req)
	}
}

func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the caller set by AuthInterceptor, or nil for anonymous calls.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
