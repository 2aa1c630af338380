package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"board-restful/apperrors"
	"board-restful/auth"
	"board-restful/interceptors"
	"board-restful/registry"
	"board-restful/repositories"
	"board-restful/services"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "board.v1.SessionService"

	MethodVerify          = "/" + ServiceName + "/Verify"
	MethodCheckPermission = "/" + ServiceName + "/CheckPermission"
	MethodGetPost         = "/" + ServiceName + "/GetPost"
	MethodDiscover        = "/" + ServiceName + "/Discover"
)

// PublicMethods skip AuthInterceptor: Verify carries its token in the request
// and Discover only reads the service catalog.
var PublicMethods = []string{MethodVerify, MethodDiscover}

// SessionServer lets internal services resolve board sessions and apply the
// board's permission rules without parsing tokens themselves.
type SessionServer interface {
	// Verify checks a token and returns its identity fields.
	Verify(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	// CheckPermission evaluates {"action", "post_id"?, "guest_password"?} for the calling session.
	CheckPermission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// GetPost returns a post as the calling session may see it. Views are counted.
	GetPost(ctx context.Context, id *wrapperspb.UInt64Value) (*structpb.Struct, error)
	// Discover lists healthy "host:port" instances of a registered service.
	Discover(ctx context.Context, name *wrapperspb.StringValue) (*structpb.ListValue, error)
}

type sessionServer struct {
	tokens   *auth.TokenIssuer
	posts    services.PostService
	postRepo repositories.PostRepository
	registry registry.ServiceRegistry
	logger   *zap.Logger
}

// NewSessionServer builds the service. reg may be nil when discovery is disabled.
func NewSessionServer(tokens *auth.TokenIssuer, posts services.PostService, postRepo repositories.PostRepository, reg registry.ServiceRegistry, logger *zap.Logger) SessionServer {
	return &sessionServer{tokens: tokens, posts: posts, postRepo: postRepo, registry: reg, logger: logger.Named("SessionService")}
}

func (s *sessionServer) Verify(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error) {
	claims, err := s.tokens.Verify(token.GetValue())
	if err != nil {
		reason := "invalid token signature"
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			reason = "token is required"
		case errors.Is(err, auth.ErrTokenExpired):
			reason = "token is expired"
		}
		return structpb.NewStruct(map[string]any{"valid": false, "error": reason})
	}

	fields := map[string]any{
		"valid":    true,
		"user_id":  float64(claims.UserID),
		"username": claims.Username,
		"nickname": claims.Nickname,
		"role":     claims.Role,
		"is_admin": claims.IsAdmin(),
	}
	if claims.ExpiresAt != nil {
		fields["expires_at"] = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(fields)
}

func (s *sessionServer) CheckPermission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	action := auth.Action(fields["action"].GetStringValue())
	if action == "" {
		return nil, status.Error(codes.InvalidArgument, "action is required")
	}

	var res auth.Resource
	if v, ok := fields["post_id"]; ok {
		postID, ok := postIDFromValue(v)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "post_id must be a positive integer")
		}
		post, err := s.postRepo.FindByID(ctx, postID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, status.Error(codes.NotFound, "Post not found")
			}
			s.logger.Error("Database error retrieving post", zap.Uint("post_id", postID), zap.Error(err))
			return nil, status.Error(codes.Internal, "An internal error occurred")
		}
		res = auth.PostResource(post)
		res.GuestPassword = fields["guest_password"].GetStringValue()
	}

	if err := auth.Authorize(interceptors.ClaimsFromContext(ctx), action, res); err != nil {
		return structpb.NewStruct(map[string]any{"granted": false, "error": apperrors.PublicMessage(err)})
	}
	return structpb.NewStruct(map[string]any{"granted": true})
}

func (s *sessionServer) GetPost(ctx context.Context, id *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if id.GetValue() == 0 {
		return nil, status.Error(codes.InvalidArgument, "post id is required")
	}
	post, err := s.posts.GetPost(ctx, uint(id.GetValue()), interceptors.ClaimsFromContext(ctx))
	if err != nil {
		return nil, status.Error(apperrors.GRPCCode(err), apperrors.PublicMessage(err))
	}
	return toStruct(post)
}

func (s *sessionServer) Discover(ctx context.Context, name *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if name.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "Service name required")
	}
	if s.registry == nil {
		return nil, status.Error(codes.Unavailable, "service discovery is disabled")
	}
	addrs, err := s.registry.Discover(name.GetValue(), "")
	if err != nil {
		if errors.Is(err, registry.ErrNoInstances) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Errorf(codes.Unavailable, "error discovering service %q", name.GetValue())
	}

	values := make([]any, 0, len(addrs))
	for _, a := range addrs {
		values = append(values, a)
	}
	return structpb.NewList(values)
}

// postIDFromValue accepts only whole numbers in the range of stored post IDs.
func postIDFromValue(v *structpb.Value) (uint, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	f := n.NumberValue
	if math.IsNaN(f) || f < 1 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return uint(f), true
}

// toStruct converts a JSON-tagged value to a Struct with the same field names
// the HTTP API uses.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "An internal error occurred")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "An internal error occurred")
	}
	return structpb.NewStruct(m)
}
