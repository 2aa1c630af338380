package auth

import (
	"board-restful/apperrors"
	"board-restful/models"
)

// Action is a permission name in the "resource:verb[:scope]" form.
type Action string

const (
	ActionCreateInquiry Action = "posts:create:inquiry"
	ActionCreateReview  Action = "posts:create:review"
	ActionCreateComment Action = "comments:create"
	ActionDeletePost    Action = "posts:delete:own"
	ActionReadSecret    Action = "posts:read:secret"
)

// rolePermissions grants actions that depend only on the caller's role.
// Ownership-based actions (deleting, reading one's own secret post) are
// decided against the Resource in Authorize.
var rolePermissions = map[string]map[Action]struct{}{
	models.RoleMember: {
		ActionCreateInquiry: {},
		ActionCreateReview:  {},
	},
	models.RoleAdmin: {
		ActionCreateInquiry: {},
		ActionCreateReview:  {},
		ActionCreateComment: {},
		ActionReadSecret:    {},
	},
}

// guestPermissions applies to callers without a token.
var guestPermissions = map[Action]struct{}{
	ActionCreateInquiry: {},
}

// Resource describes the post an action targets.
type Resource struct {
	AuthorID          *uint
	AuthorNickname    string
	GuestPasswordHash string
	// GuestPassword is the plaintext password presented by the caller.
	GuestPassword string
}

// PostResource builds the Resource for p.
func PostResource(p *models.Post) Resource {
	res := Resource{AuthorID: p.UserID, GuestPasswordHash: p.GuestPassword}
	if p.Author != nil {
		res.AuthorNickname = p.Author.Nickname
	}
	return res
}

// RoleHasPermission reports whether role grants action.
func RoleHasPermission(role string, action Action) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[action]
	return ok
}

// Authorize decides whether caller may perform action on res. A nil caller is
// an anonymous request. Denials for anonymous callers that need an identity
// are Unauthorized; denials for identified callers are Forbidden.
func Authorize(caller *Claims, action Action, res Resource) error {
	switch action {
	case ActionDeletePost:
		return authorizeDelete(caller, res)
	case ActionReadSecret:
		if caller == nil {
			return apperrors.Unauthorized("Login required to read secret posts")
		}
		if isAuthor(caller, res) || RoleHasPermission(caller.Role, ActionReadSecret) {
			return nil
		}
		return apperrors.Forbidden("Forbidden: secret post")
	}

	if caller == nil {
		if _, ok := guestPermissions[action]; ok {
			return nil
		}
		switch action {
		case ActionCreateReview:
			return apperrors.Unauthorized("Login required to write reviews")
		default:
			return apperrors.Unauthorized("Authorization header required")
		}
	}

	if RoleHasPermission(caller.Role, action) {
		return nil
	}
	if action == ActionCreateComment {
		return apperrors.Forbidden("Forbidden: only administrators can reply")
	}
	return apperrors.Forbidden("Forbidden: missing permission " + string(action))
}

func authorizeDelete(caller *Claims, res Resource) error {
	if res.AuthorID != nil {
		if caller == nil {
			return apperrors.Unauthorized("Login required to delete a member post")
		}
		if caller.UserID != *res.AuthorID {
			return apperrors.Forbidden("Forbidden: you can only delete your own posts")
		}
		return nil
	}
	if !CheckPassword(res.GuestPassword, res.GuestPasswordHash) {
		return apperrors.Forbidden("Forbidden: guest password does not match")
	}
	return nil
}

func isAuthor(caller *Claims, res Resource) bool {
	if caller == nil {
		return false
	}
	if res.AuthorID != nil && *res.AuthorID == caller.UserID {
		return true
	}
	return res.AuthorNickname != "" && res.AuthorNickname == caller.Nickname
}

// CanReadSecret reports whether caller sees the full content of a secret post.
func CanReadSecret(caller *Claims, res Resource) bool {
	return Authorize(caller, ActionReadSecret, res) == nil
}

// ActionForPostType maps a board to its create permission.
func ActionForPostType(t models.PostType) Action {
	if t == models.PostTypeReview {
		return ActionCreateReview
	}
	return ActionCreateInquiry
}
