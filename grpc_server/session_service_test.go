package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"board-restful/auth"
	"board-restful/config"
	"board-restful/database"
	"board-restful/interceptors"
	"board-restful/repositories"
	"board-restful/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type testEnv struct {
	client *SessionClient
	users  services.UserService
	posts  services.PostService
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", URL: ":memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	postRepo := repositories.NewPostRepository(db)
	commentRepo := repositories.NewCommentRepository(db)
	users := services.NewUserService(repositories.NewUserRepository(db), tokens, "admin_master", zap.NewNop())
	posts := services.NewPostService(postRepo, commentRepo, zap.NewNop())

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.RecoveryInterceptor(zap.NewNop()),
		interceptors.AuthInterceptor(tokens, PublicMethods...),
	))
	RegisterSessionServer(srv, NewSessionServer(tokens, posts, postRepo, nil, zap.NewNop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: NewSessionClient(conn), users: users, posts: posts}
}

func (e *testEnv) login(t *testing.T, username string) (string, *auth.Claims) {
	t.Helper()
	ctx := context.Background()
	_, err := e.users.Register(ctx, &services.RegisterInput{Username: username, Password: "password1", Nickname: username + "-nick"})
	require.NoError(t, err)
	res, err := e.users.Login(ctx, &services.LoginInput{Username: username, Password: "password1"})
	require.NoError(t, err)
	claims, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour).Verify(res.Token)
	require.NoError(t, err)
	return res.Token, claims
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestVerify(t *testing.T) {
	env := setupServer(t)
	token, _ := env.login(t, "alice")

	res, err := env.client.Verify(context.Background(), token)
	require.NoError(t, err)
	fields := res.AsMap()
	assert.Equal(t, true, fields["valid"])
	assert.Equal(t, "alice", fields["username"])
	assert.Equal(t, "member", fields["role"])
	assert.Equal(t, false, fields["is_admin"])
	assert.NotEmpty(t, fields["expires_at"])

	res, err = env.client.Verify(context.Background(), token+"x")
	require.NoError(t, err)
	assert.Equal(t, false, res.AsMap()["valid"])

	res, err = env.client.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "token is required", res.AsMap()["error"])
}

func TestGetPostAppliesVisibility(t *testing.T) {
	env := setupServer(t)
	aliceToken, alice := env.login(t, "alice")
	bobToken, _ := env.login(t, "bob")

	postID, err := env.posts.CreatePost(context.Background(), &services.CreatePostInput{Title: "Private", Content: "details", IsSecret: true}, alice)
	require.NoError(t, err)

	res, err := env.client.GetPost(context.Background(), uint64(postID))
	require.NoError(t, err)
	assert.Equal(t, services.RedactedTitle, res.AsMap()["title"])

	res, err = env.client.GetPost(withToken(bobToken), uint64(postID))
	require.NoError(t, err)
	assert.Equal(t, true, res.AsMap()["redacted"])

	res, err = env.client.GetPost(withToken(aliceToken), uint64(postID))
	require.NoError(t, err)
	assert.Equal(t, "Private", res.AsMap()["title"])
	assert.EqualValues(t, 3, res.AsMap()["views"])

	_, err = env.client.GetPost(context.Background(), 9999)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = env.client.GetPost(withToken("garbage"), uint64(postID))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestCheckPermission(t *testing.T) {
	env := setupServer(t)
	adminToken, _ := env.login(t, "admin_master")
	memberToken, _ := env.login(t, "alice")

	req, err := structpb.NewStruct(map[string]any{"action": string(auth.ActionCreateComment)})
	require.NoError(t, err)

	res, err := env.client.CheckPermission(withToken(memberToken), req)
	require.NoError(t, err)
	assert.Equal(t, false, res.AsMap()["granted"])

	res, err = env.client.CheckPermission(withToken(adminToken), req)
	require.NoError(t, err)
	assert.Equal(t, true, res.AsMap()["granted"])

	_, err = env.client.CheckPermission(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCheckPermissionGuestDelete(t *testing.T) {
	env := setupServer(t)
	postID, err := env.posts.CreatePost(context.Background(), &services.CreatePostInput{
		Title: "Hello", Content: "c", GuestName: "visitor", GuestPassword: "pw1234",
	}, nil)
	require.NoError(t, err)

	check := func(password string) bool {
		req, err := structpb.NewStruct(map[string]any{
			"action": string(auth.ActionDeletePost), "post_id": float64(postID), "guest_password": password,
		})
		require.NoError(t, err)
		res, err := env.client.CheckPermission(context.Background(), req)
		require.NoError(t, err)
		return res.AsMap()["granted"].(bool)
	}
	assert.True(t, check("pw1234"))
	assert.False(t, check("wrong"))
}

func TestCheckPermissionRejectsMalformedPostID(t *testing.T) {
	env := setupServer(t)

	for _, id := range []any{1.5, -3.0, 0.0, 1e12, "7"} {
		req, err := structpb.NewStruct(map[string]any{"action": string(auth.ActionDeletePost), "post_id": id})
		require.NoError(t, err)
		_, err = env.client.CheckPermission(context.Background(), req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "post_id %v", id)
	}
}

func TestDiscoverWithoutRegistry(t *testing.T) {
	env := setupServer(t)

	_, err := env.client.Discover(context.Background(), "board")
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = env.client.Discover(context.Background(), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
