package controllers

import (
	"net/http"

	"board-restful/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type UserController struct {
	userService services.UserService
}

func NewUserController(userService services.UserService) *UserController {
	return &UserController{userService: userService}
}

// RegisterRoutes adds the public account routes to ws.
func (ctl *UserController) RegisterRoutes(ws *restful.WebService) {
	tags := []string{"accounts"}

	ws.Route(ws.POST("/register").To(ctl.registerHandler).
		Doc("Register a new member").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.RegisterInput{}).
		Returns(http.StatusCreated, "User created successfully", MessageResponse{}).
		Returns(http.StatusBadRequest, "Missing or invalid fields", ErrorResponse{}).
		Returns(http.StatusConflict, "Username or nickname already exists", ErrorResponse{}))

	ws.Route(ws.POST("/login").To(ctl.loginHandler).
		Doc("Log in and receive a bearer token").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.LoginInput{}).
		Returns(http.StatusOK, "Logged in", services.LoginResult{}).
		Returns(http.StatusBadRequest, "Missing fields", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Invalid credentials", ErrorResponse{}))
}

// registerHandler (Handles POST /api/register)
func (ctl *UserController) registerHandler(request *restful.Request, response *restful.Response) {
	input := new(services.RegisterInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := ctl.userService.Register(request.Request.Context(), input); err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, MessageResponse{Message: "User created successfully"}, restful.MIME_JSON)
}

// loginHandler (Handles POST /api/login)
func (ctl *UserController) loginHandler(request *restful.Request, response *restful.Response) {
	creds := new(services.LoginInput)
	if err := request.ReadEntity(creds); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := ctl.userService.Login(request.Request.Context(), creds)
	if err != nil {
		handleServiceError(response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, result, restful.MIME_JSON)
}
