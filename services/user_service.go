package services

import (
	"context"
	"errors"
	"strings"

	"board-restful/apperrors"
	"board-restful/auth"
	"board-restful/models"
	"board-restful/repositories"

	"go.uber.org/zap"
)

const minPasswordLength = 6

// The UserService interface covers registration and login.
type UserService interface {
	Register(ctx context.Context, input *RegisterInput) (*models.User, error)
	Login(ctx context.Context, input *LoginInput) (*LoginResult, error)
}

type RegisterInput struct {
	Username string `json:"username" description:"Unique login name"`
	Password string `json:"password" description:"At least 6 characters"`
	Nickname string `json:"nickname" description:"Unique display name"`
}

type LoginInput struct {
	Username string `json:"username" description:"Username for login"`
	Password string `json:"password" description:"Password for login"`
}

type LoginResult struct {
	Token    string `json:"token"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

type userService struct {
	repo          repositories.UserRepository
	tokens        *auth.TokenIssuer
	adminUsername string
	logger        *zap.Logger
	// dummyHash is compared against on unknown usernames so both login
	// failures cost one bcrypt comparison.
	dummyHash string
}

var _ UserService = (*userService)(nil)

func NewUserService(repo repositories.UserRepository, tokens *auth.TokenIssuer, adminUsername string, logger *zap.Logger) UserService {
	dummy, _ := auth.HashPassword("dummy-password-for-timing")
	return &userService{
		repo:          repo,
		tokens:        tokens,
		adminUsername: adminUsername,
		logger:        logger,
		dummyHash:     dummy,
	}
}

// Register creates a member account, or the admin account when the username
// is the reserved administrator identifier. It does not log the user in.
func (s *userService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	nickname := strings.TrimSpace(input.Nickname)
	if username == "" || input.Password == "" || nickname == "" {
		return nil, apperrors.Validation("Username, password and nickname are required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least 6 characters")
	}
	if len(input.Password) > auth.MaxPasswordBytes {
		return nil, apperrors.Validation("Password must be at most 72 bytes")
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, apperrors.Conflict("Username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, s.storeError("Database error checking existing user", err)
	}
	if _, err := s.repo.FindByNickname(ctx, nickname); err == nil {
		return nil, apperrors.Conflict("Nickname already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, s.storeError("Database error checking existing nickname", err)
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Could not hash password", err)
	}

	role := models.RoleMember
	if username == s.adminUsername {
		role = models.RoleAdmin
	}
	user := &models.User{
		Username: username,
		Password: hashed,
		Nickname: nickname,
		Role:     role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Conflict("Username or nickname already exists")
		}
		return nil, s.storeError("Failed to create user", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("role", role))
	return user, nil
}

// Login returns a session token. Unknown usernames and wrong passwords fail
// with the same InvalidCredentials error.
func (s *userService) Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, apperrors.Validation("Username and password are required")
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			auth.CheckPassword(input.Password, s.dummyHash)
			return nil, apperrors.InvalidCredentials()
		}
		return nil, s.storeError("Database error retrieving user", err)
	}
	if !auth.CheckPassword(input.Password, user.Password) {
		return nil, apperrors.InvalidCredentials()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Could not generate token", err)
	}
	if user.IsAdmin() {
		s.logger.Info("Administrator logged in", zap.Uint("user_id", user.ID))
	}
	return &LoginResult{
		Token:     token,
		Nickname:  user.Nickname,
		Role:      user.Role,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *userService) storeError(message string, err error) error {
	s.logger.Error(message, zap.Error(err))
	return apperrors.Store(message, err)
}
