package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"board-restful/auth"
	"board-restful/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type PostController struct {
	postService services.PostService
	tokens      *auth.TokenIssuer
}

func NewPostController(postService services.PostService, tokens *auth.TokenIssuer) *PostController {
	return &PostController{postService: postService, tokens: tokens}
}

type CreatePostResponse struct {
	PostID uint `json:"postId"`
}

// DeletePostInput carries the guest password for guest-authored posts.
type DeletePostInput struct {
	GuestPassword string `json:"guest_password,omitempty"`
}

func (ctl *PostController) RegisterRoutes(ws *restful.WebService) {
	tags := []string{"posts"}

	ws.Route(ws.GET("/posts").Filter(ctl.tokens.LenientAuth()).To(ctl.listPostsHandler).
		Doc("List posts of a board, newest first").
		Param(ws.QueryParameter("type", "inquiry (default) or review").DataType("string").DefaultValue("inquiry")).
		Param(ws.QueryParameter("page", "Page number (default 1)").DataType("integer").DefaultValue("1")).
		Param(ws.QueryParameter("limit", "Posts per page (default 10, max 100)").DataType("integer").DefaultValue("10")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(services.PostPage{}).
		Returns(http.StatusOK, "Posts listed", services.PostPage{}).
		Returns(http.StatusBadRequest, "Unknown board type", ErrorResponse{}))

	ws.Route(ws.GET("/posts/{post-id}").Filter(ctl.tokens.LenientAuth()).To(ctl.getPostHandler).
		Doc("Get a post and its replies; counts a view").
		Param(ws.PathParameter("post-id", "Identifier of the post").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(services.PostResponse{}).
		Returns(http.StatusOK, "Post found", services.PostResponse{}).
		Returns(http.StatusNotFound, "Post not found", ErrorResponse{}))

	ws.Route(ws.POST("/posts").Filter(ctl.tokens.OptionalAuth()).To(ctl.createPostHandler).
		Doc("Create an inquiry (guests allowed) or a review (members only)").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.CreatePostInput{}).
		Returns(http.StatusCreated, "Post created", CreatePostResponse{}).
		Returns(http.StatusBadRequest, "Missing fields or guest credentials", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Login required or invalid token", ErrorResponse{}))

	ws.Route(ws.DELETE("/posts/{post-id}").Filter(ctl.tokens.OptionalAuth()).To(ctl.deletePostHandler).
		Doc("Delete a post as its member author or with the guest password").
		Param(ws.PathParameter("post-id", "Identifier of the post to delete").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(DeletePostInput{}).
		Returns(http.StatusOK, "Post deleted", MessageResponse{}).
		Returns(http.StatusUnauthorized, "Login required or invalid token", ErrorResponse{}).
		Returns(http.StatusForbidden, "Not the author or wrong guest password", ErrorResponse{}).
		Returns(http.StatusNotFound, "Post not found", ErrorResponse{}))
}

// listPostsHandler (Handles GET /api/posts)
func (ctl *PostController) listPostsHandler(request *restful.Request, response *restful.Response) {
	page, err := strconv.Atoi(request.QueryParameter("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(request.QueryParameter("limit"))
	if err != nil || limit < 1 {
		limit = services.DefaultPageSize
	}

	input := services.ListPostsInput{Type: request.QueryParameter("type"), Page: page, Limit: limit}
	result, err := ctl.postService.ListPosts(request.Request.Context(), input, auth.ClaimsFrom(request))
	if err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, result, restful.MIME_JSON)
}

// getPostHandler (Handles GET /api/posts/{post-id})
func (ctl *PostController) getPostHandler(request *restful.Request, response *restful.Response) {
	postID, ok := parsePostID(request, response)
	if !ok {
		return
	}

	post, err := ctl.postService.GetPost(request.Request.Context(), postID, auth.ClaimsFrom(request))
	if err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, post, restful.MIME_JSON)
}

// createPostHandler (Handles POST /api/posts)
func (ctl *PostController) createPostHandler(request *restful.Request, response *restful.Response) {
	input := new(services.CreatePostInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body")
		return
	}

	postID, err := ctl.postService.CreatePost(request.Request.Context(), input, auth.ClaimsFrom(request))
	if err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, CreatePostResponse{PostID: postID}, restful.MIME_JSON)
}

// deletePostHandler (Handles DELETE /api/posts/{post-id})
func (ctl *PostController) deletePostHandler(request *restful.Request, response *restful.Response) {
	postID, ok := parsePostID(request, response)
	if !ok {
		return
	}

	// The body is optional: members delete with their token alone.
	input := new(DeletePostInput)
	if request.Request.ContentLength != 0 {
		if err := request.ReadEntity(input); err != nil && !errors.Is(err, io.EOF) {
			writeError(response, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	err := ctl.postService.DeletePost(request.Request.Context(), postID, input.GuestPassword, auth.ClaimsFrom(request))
	if err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, MessageResponse{Message: "Post deleted"}, restful.MIME_JSON)
}

func parsePostID(request *restful.Request, response *restful.Response) (uint, bool) {
	postID, err := strconv.ParseUint(request.PathParameter("post-id"), 10, 32)
	if err != nil || postID == 0 {
		writeError(response, http.StatusBadRequest, "Invalid post ID format")
		return 0, false
	}
	return uint(postID), true
}
