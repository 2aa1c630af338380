package controllers

import (
	"net/http"

	"board-restful/auth"
	"board-restful/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type CommentController struct {
	commentService services.CommentService
	tokens         *auth.TokenIssuer
}

func NewCommentController(commentService services.CommentService, tokens *auth.TokenIssuer) *CommentController {
	return &CommentController{commentService: commentService, tokens: tokens}
}

type CreateCommentResponse struct {
	CommentID uint `json:"commentId"`
}

func (ctl *CommentController) RegisterRoutes(ws *restful.WebService) {
	ws.Route(ws.POST("/comments").Filter(ctl.tokens.RequireAuth()).To(ctl.createCommentHandler).
		Doc("Reply to a post (administrators only)").
		Metadata(restfulspec.KeyOpenAPITags, []string{"comments"}).
		Reads(services.CreateCommentInput{}).
		Returns(http.StatusCreated, "Reply created", CreateCommentResponse{}).
		Returns(http.StatusBadRequest, "Missing fields", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "Post not found", ErrorResponse{}))
}

// createCommentHandler (Handles POST /api/comments)
func (ctl *CommentController) createCommentHandler(request *restful.Request, response *restful.Response) {
	input := new(services.CreateCommentInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body")
		return
	}

	commentID, err := ctl.commentService.CreateComment(request.Request.Context(), input, auth.ClaimsFrom(request))
	if err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, CreateCommentResponse{CommentID: commentID}, restful.MIME_JSON)
}
