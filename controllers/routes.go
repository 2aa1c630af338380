package controllers

import (
	restful "github.com/emicklei/go-restful/v3"
)

// RouteRegistrar is implemented by every controller in this package.
type RouteRegistrar interface {
	RegisterRoutes(ws *restful.WebService)
}

// NewAPIWebService builds the /api web service with the routes of every controller.
func NewAPIWebService(controllers ...RouteRegistrar) *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/api").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	for _, c := range controllers {
		c.RegisterRoutes(ws)
	}
	return ws
}
