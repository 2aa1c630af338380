package interceptors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestLogger logs every HTTP request after it is handled and tags it with
// a request ID, reusing the caller's X-Request-ID when present.
func RequestLogger(logger *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		startTime := time.Now()

		requestID := req.HeaderParameter(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		resp.AddHeader(RequestIDHeader, requestID)

		chain.ProcessFilter(req, resp)

		logger.Info("Request",
			zap.String("request_id", requestID),
			zap.String("client_ip", req.Request.RemoteAddr),
			zap.String("method", req.Request.Method),
			zap.String("path", req.Request.URL.Path),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("user_agent", req.Request.UserAgent()),
		)
	}
}

// RecoverHandler logs a panic raised by a route and answers with a generic 500.
func RecoverHandler(logger *zap.Logger) restful.RecoverHandleFunction {
	return func(panicReason interface{}, w http.ResponseWriter) {
		logger.Error("Recovered from panic in HTTP handler",
			zap.String("panic", fmt.Sprint(panicReason)),
			zap.ByteString("stack", debug.Stack()),
		)
		w.Header().Set("Content-Type", restful.MIME_JSON)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "An internal error occurred"})
	}
}
