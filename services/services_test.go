package services

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"board-restful/apperrors"
	"board-restful/auth"
	"board-restful/config"
	"board-restful/database"
	"board-restful/models"
	"board-restful/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testBoard struct {
	users    UserService
	posts    PostService
	comments CommentService
	tokens   *auth.TokenIssuer
}

func setupBoard(t *testing.T) *testBoard {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", URL: ":memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	postRepo := repositories.NewPostRepository(db)
	commentRepo := repositories.NewCommentRepository(db)
	return &testBoard{
		users:    NewUserService(repositories.NewUserRepository(db), tokens, "admin_master", zap.NewNop()),
		posts:    NewPostService(postRepo, commentRepo, zap.NewNop()),
		comments: NewCommentService(postRepo, commentRepo, zap.NewNop()),
		tokens:   tokens,
	}
}

// login registers username and returns its verified claims.
func (b *testBoard) login(t *testing.T, username string) *auth.Claims {
	t.Helper()
	ctx := context.Background()
	_, err := b.users.Register(ctx, &RegisterInput{Username: username, Password: "password1", Nickname: username + "-nick"})
	require.NoError(t, err)
	res, err := b.users.Login(ctx, &LoginInput{Username: username, Password: "password1"})
	require.NoError(t, err)
	claims, err := b.tokens.Verify(res.Token)
	require.NoError(t, err)
	return claims
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)

	user, err := b.users.Register(ctx, &RegisterInput{Username: "alice", Password: "password1", Nickname: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, user.Role)
	assert.NotEqual(t, "password1", user.Password)

	_, err = b.users.Register(ctx, &RegisterInput{Username: "alice", Password: "password1", Nickname: "Other"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict), "duplicate username")

	_, err = b.users.Register(ctx, &RegisterInput{Username: "alice2", Password: "password1", Nickname: "Alice"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict), "duplicate nickname")

	_, err = b.users.Register(ctx, &RegisterInput{Username: "bob", Password: "", Nickname: "Bob"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = b.users.Register(ctx, &RegisterInput{Username: "bob", Password: "12345", Nickname: "Bob"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "short password")
}

func TestRegisterReservedAdmin(t *testing.T) {
	b := setupBoard(t)

	user, err := b.users.Register(context.Background(), &RegisterInput{Username: "admin_master", Password: "password1", Nickname: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	_, err := b.users.Register(ctx, &RegisterInput{Username: "alice", Password: "password1", Nickname: "Alice"})
	require.NoError(t, err)

	res, err := b.users.Login(ctx, &LoginInput{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.Nickname)
	assert.Equal(t, models.RoleMember, res.Role)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := b.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, wrongPassword := b.users.Login(ctx, &LoginInput{Username: "alice", Password: "nope-nope"})
	_, unknownUser := b.users.Login(ctx, &LoginInput{Username: "ghost", Password: "password1"})
	assert.True(t, apperrors.IsKind(wrongPassword, apperrors.KindInvalidCredentials))
	assert.True(t, apperrors.IsKind(unknownUser, apperrors.KindInvalidCredentials))
	assert.Equal(t, apperrors.PublicMessage(wrongPassword), apperrors.PublicMessage(unknownUser))
}

func TestLoginTrimsUsername(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	_, err := b.users.Register(ctx, &RegisterInput{Username: " alice ", Password: "password1", Nickname: "Alice"})
	require.NoError(t, err)

	for _, name := range []string{" alice ", "alice"} {
		res, err := b.users.Login(ctx, &LoginInput{Username: name, Password: "password1"})
		require.NoError(t, err, "username %q", name)
		assert.Equal(t, "Alice", res.Nickname)
	}
}

func TestLongPasswordsAreValidationErrors(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	long := strings.Repeat("p", 80)

	_, err := b.users.Register(ctx, &RegisterInput{Username: "alice", Password: long, Nickname: "Alice"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "account password")

	_, err = b.posts.CreatePost(ctx, &CreatePostInput{
		Title: "t", Content: "c", GuestName: "bob", GuestPassword: long,
	}, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "guest password")

	_, err = b.users.Register(ctx, &RegisterInput{Username: "carol", Password: strings.Repeat("p", 72), Nickname: "Carol"})
	assert.NoError(t, err)
}

func TestGuestInquiryLifecycle(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)

	id, err := b.posts.CreatePost(ctx, &CreatePostInput{
		Type: "inquiry", Title: "Opening hours?", Content: "When are you open?",
		GuestName: "bob", GuestPassword: "secret123",
	}, nil)
	require.NoError(t, err)

	post, err := b.posts.GetPost(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", post.GuestName)

	err = b.posts.DeletePost(ctx, id, "wrong", nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	require.NoError(t, b.posts.DeletePost(ctx, id, "secret123", nil))

	_, err = b.posts.GetPost(ctx, id, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestGuestInquiryRequiresCredentials(t *testing.T) {
	b := setupBoard(t)

	_, err := b.posts.CreatePost(context.Background(), &CreatePostInput{Type: "inquiry", Title: "t", Content: "c", GuestName: "bob"}, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestReviewGating(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	input := &CreatePostInput{Type: "review", Title: "Great", Content: "Fixed my PC"}

	_, err := b.posts.CreatePost(ctx, input, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))

	id, err := b.posts.CreatePost(ctx, input, b.login(t, "dave"))
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestMemberPostDeletion(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	owner := b.login(t, "erin")
	other := b.login(t, "frank")

	id, err := b.posts.CreatePost(ctx, &CreatePostInput{Type: "review", Title: "t", Content: "c"}, owner)
	require.NoError(t, err)

	assert.True(t, apperrors.IsKind(b.posts.DeletePost(ctx, id, "", nil), apperrors.KindUnauthorized))
	assert.True(t, apperrors.IsKind(b.posts.DeletePost(ctx, id, "", other), apperrors.KindForbidden))
	require.NoError(t, b.posts.DeletePost(ctx, id, "", owner))
	assert.True(t, apperrors.IsKind(b.posts.DeletePost(ctx, id, "", owner), apperrors.KindNotFound))
}

func TestSecretPostRedaction(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	carol := b.login(t, "carol")
	stranger := b.login(t, "mallory")
	admin := b.login(t, "admin_master")

	id, err := b.posts.CreatePost(ctx, &CreatePostInput{
		Type: "inquiry", Title: "My address", Content: "1 Main St", IsSecret: true,
	}, carol)
	require.NoError(t, err)

	for name, caller := range map[string]*auth.Claims{"anonymous": nil, "stranger": stranger} {
		page, err := b.posts.ListPosts(ctx, ListPostsInput{Type: "inquiry"}, caller)
		require.NoError(t, err, name)
		require.Len(t, page.Posts, 1, name)
		assert.Equal(t, RedactedTitle, page.Posts[0].Title, name)
		assert.Empty(t, page.Posts[0].Content, name)
		assert.True(t, page.Posts[0].Redacted, name)
		assert.Equal(t, "carol-nick", page.Posts[0].AuthorNickname, name)
	}

	for name, caller := range map[string]*auth.Claims{"author": carol, "admin": admin} {
		page, err := b.posts.ListPosts(ctx, ListPostsInput{Type: "inquiry"}, caller)
		require.NoError(t, err, name)
		assert.Equal(t, "My address", page.Posts[0].Title, name)
		assert.Equal(t, "1 Main St", page.Posts[0].Content, name)

		post, err := b.posts.GetPost(ctx, id, caller)
		require.NoError(t, err, name)
		assert.Equal(t, "1 Main St", post.Content, name)
	}
}

func TestGetPostCountsViewsEvenWhenRedacted(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	carol := b.login(t, "carol")

	id, err := b.posts.CreatePost(ctx, &CreatePostInput{Type: "inquiry", Title: "t", Content: "c", IsSecret: true}, carol)
	require.NoError(t, err)

	first, err := b.posts.GetPost(ctx, id, nil)
	require.NoError(t, err)
	assert.True(t, first.Redacted)
	assert.Equal(t, uint(1), first.Views)

	second, err := b.posts.GetPost(ctx, id, carol)
	require.NoError(t, err)
	assert.False(t, second.Redacted)
	assert.Equal(t, uint(2), second.Views)
}

func TestListPostsPagination(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	for i := 0; i < 25; i++ {
		_, err := b.posts.CreatePost(ctx, &CreatePostInput{Type: "inquiry", Title: "q", Content: "c", GuestName: "g", GuestPassword: "pw"}, nil)
		require.NoError(t, err)
	}

	page, err := b.posts.ListPosts(ctx, ListPostsInput{Type: "inquiry", Page: 1, Limit: 10}, nil)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 10)
	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)

	page, err = b.posts.ListPosts(ctx, ListPostsInput{Type: "inquiry", Page: 3, Limit: 10}, nil)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 5)

	page, err = b.posts.ListPosts(ctx, ListPostsInput{Type: "review"}, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, 0, page.TotalPages)

	_, err = b.posts.ListPosts(ctx, ListPostsInput{Type: "notice"}, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestListPostsClampsHugePage(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	member := b.login(t, "hank")
	for i := 0; i < 3; i++ {
		_, err := b.posts.CreatePost(ctx, &CreatePostInput{Title: "t", Content: "c"}, member)
		require.NoError(t, err)
	}

	page, err := b.posts.ListPosts(ctx, ListPostsInput{Page: math.MaxInt, Limit: 10}, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, MaxPage, page.CurrentPage)
	assert.Equal(t, int64(3), page.TotalCount)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 10))
	assert.Equal(t, 1, totalPages(10, 10))
	assert.Equal(t, 3, totalPages(25, 10))
}

func TestAdminOnlyComments(t *testing.T) {
	ctx := context.Background()
	b := setupBoard(t)
	member := b.login(t, "gina")
	admin := b.login(t, "admin_master")

	postID, err := b.posts.CreatePost(ctx, &CreatePostInput{Type: "review", Title: "t", Content: "c"}, member)
	require.NoError(t, err)

	_, err = b.comments.CreateComment(ctx, &CreateCommentInput{PostID: postID, Content: "me too"}, member)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = b.comments.CreateComment(ctx, &CreateCommentInput{PostID: postID, Content: "hi"}, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))

	_, err = b.comments.CreateComment(ctx, &CreateCommentInput{PostID: 9999, Content: "hi"}, admin)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	commentID, err := b.comments.CreateComment(ctx, &CreateCommentInput{PostID: postID, Content: "Thank you!"}, admin)
	require.NoError(t, err)
	assert.NotZero(t, commentID)

	post, err := b.posts.GetPost(ctx, postID, nil)
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "admin_master-nick", post.Comments[0].AuthorNickname)

	page, err := b.posts.ListPosts(ctx, ListPostsInput{Type: "review"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Posts[0].CommentCount)
}
