package controllers

import (
	"board-restful/apperrors"

	restful "github.com/emicklei/go-restful/v3"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse is the body of successful requests that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// handleServiceError translates service errors to HTTP responses. Store
// failures are logged by the service and reach the client as a generic message.
func handleServiceError(response *restful.Response, err error) {
	writeError(response, apperrors.HTTPStatus(err), apperrors.PublicMessage(err))
}

func writeError(response *restful.Response, status int, message string) {
	_ = response.WriteHeaderAndJson(status, ErrorResponse{Message: message}, restful.MIME_JSON)
}
