package controllers

import (
	"context"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

// Pinger reports whether a backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	store Pinger
}

func NewHealthController(store Pinger) *HealthController {
	return &HealthController{store: store}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (ctl *HealthController) RegisterRoutes(ws *restful.WebService) {
	ws.Route(ws.GET("/health").To(ctl.healthHandler).
		Doc("Liveness and database reachability").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "Healthy", HealthResponse{}).
		Returns(http.StatusServiceUnavailable, "Database unreachable", HealthResponse{}))
}

// healthHandler (Handles GET /api/health)
func (ctl *HealthController) healthHandler(request *restful.Request, response *restful.Response) {
	ctx, cancel := context.WithTimeout(request.Request.Context(), 2*time.Second)
	defer cancel()

	if ctl.store != nil {
		if err := ctl.store.PingContext(ctx); err != nil {
			_ = response.WriteHeaderAndJson(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: "unreachable"}, restful.MIME_JSON)
			return
		}
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, HealthResponse{Status: "ok", Database: "ok"}, restful.MIME_JSON)
}
