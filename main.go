package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"board-restful/auth"
	"board-restful/config"
	"board-restful/controllers"
	"board-restful/database"
	grpcserver "board-restful/grpc_server"
	"board-restful/interceptors"
	"board-restful/registry"
	"board-restful/repositories"
	"board-restful/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func newLogger(level string) (*zap.Logger, error) {
	switch level {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Community Board API",
			Description: "Members, guests and administrators posting inquiries, reviews and replies",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "accounts", Description: "Registration and login"}},
		{TagProps: spec.TagProps{Name: "posts", Description: "Inquiry and review boards"}},
		{TagProps: spec.TagProps{Name: "comments", Description: "Administrator replies"}},
		{TagProps: spec.TagProps{Name: "health", Description: "Service health"}},
	}
	swo.SecurityDefinitions = spec.SecurityDefinitions{
		"BearerAuth": spec.APIKeyAuth("Authorization", "header"),
	}
}

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.InitConfig(flags)
	cfg := &config.AppConfig

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // Make sure the buffer is flushed before the program exits

	if cfg.UsesInsecureSecret() {
		logger.Warn("Using the built-in JWT secret; tokens can be forged by anyone who reads the source",
			zap.String("driver", cfg.Database.Driver), zap.Bool("allow_insecure_secret", cfg.AllowInsecureSecret))
	}

	db, err := database.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database pool", zap.Error(err))
	}
	defer sqlDB.Close()

	tokens := auth.NewTokenIssuer([]byte(cfg.JwtSecret), cfg.TokenTTL)

	userRepo := repositories.NewUserRepository(db)
	postRepo := repositories.NewPostRepository(db)
	commentRepo := repositories.NewCommentRepository(db)

	userService := services.NewUserService(userRepo, tokens, cfg.AdminUsername, logger)
	postService := services.NewPostService(postRepo, commentRepo, logger)
	commentService := services.NewCommentService(postRepo, commentRepo, logger)

	// --- Service discovery (optional) ---
	var serviceRegistry registry.ServiceRegistry
	instance := registry.Instance{
		ID:   fmt.Sprintf("%s-%s-%d", cfg.ServiceName, cfg.ServiceHost, cfg.HTTPPort),
		Name: cfg.ServiceName,
		Host: cfg.ServiceHost,
		Port: cfg.HTTPPort,
		Tags: []string{"http", "board"},
	}
	if cfg.Consul.Enabled {
		serviceRegistry, err = registry.NewConsulRegistry(cfg.Consul.Address, logger)
		if err != nil {
			logger.Fatal("Failed to initialize service registry", zap.Error(err))
		}
	}

	// --- HTTP API ---
	restful.DefaultRequestContentType(restful.MIME_JSON)
	restful.DefaultResponseContentType(restful.MIME_JSON)

	container := restful.NewContainer()
	container.DoNotRecover(false)
	container.RecoverHandler(interceptors.RecoverHandler(logger))
	container.Filter(interceptors.RequestLogger(logger))
	container.Add(controllers.NewAPIWebService(
		controllers.NewUserController(userService),
		controllers.NewPostController(postService, tokens),
		controllers.NewCommentController(commentService, tokens),
		controllers.NewHealthController(sqlDB),
	))

	openAPIConfig := restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       "/apidocs.json",
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}
	container.Add(restfulspec.NewOpenAPIService(openAPIConfig))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           container,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- gRPC session service ---
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.RecoveryInterceptor(logger),
		interceptors.ZapLoggingInterceptor(logger),
		interceptors.AuthInterceptor(tokens, grpcserver.PublicMethods...),
	))
	grpcserver.RegisterSessionServer(grpcServer, grpcserver.NewSessionServer(tokens, postService, postRepo, serviceRegistry, logger))

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		logger.Fatal("Failed to listen for gRPC", zap.Int("port", cfg.GRPCPort), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if serviceRegistry != nil {
		if err := registry.RegisterHTTPInstance(serviceRegistry, instance, "/api/health"); err != nil {
			logger.Error("Failed to register with service registry", zap.Error(err))
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		logger.Error("Server failed", zap.Error(err))
	}

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(instance.ID); err != nil {
			logger.Warn("Failed to deregister from service registry", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
}
