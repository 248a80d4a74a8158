//go:build lambda
// +build lambda

package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/server"
	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title           Cyphera Notify API
// @version         1.0
// @description     Admin bulk notifications and registration emails for Cyphera

// @contact.name   API Support
// @contact.email  support@cyphera.com

// @host      localhost:8000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

var ginLambda *ginadapter.GinLambda

func init() {
	cfg := server.LoadConfig()

	// Initialize logger
	logger.InitLogger(cfg.Stage)

	// Dependencies live for the lifetime of the Lambda container.
	deps, err := server.InitializeHandlers(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize handlers", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	server.InitializeRoutes(r, deps)

	ginLambda = ginadapter.New(r)
}

func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// Add debug logging
	if ce := logger.Log.Check(zap.DebugLevel, "Received Lambda request"); ce != nil {
		ce.Write(
			zap.String("path", req.Path),
			zap.String("request", spew.Sdump(req.RequestContext)),
		)
	}

	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	defer func() { _ = logger.Sync() }()
	lambda.Start(Handler)
}
