package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/internal/api/paymentapi"
	"github.com/quillhq/quillfeed/internal/api/postapi"
	"github.com/quillhq/quillfeed/internal/api/request"
	"github.com/quillhq/quillfeed/pkg/logging"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Router sets up API routes
type Router struct {
	handler     *JSONRPCHandler
	serviceName string
	posts       postapi.Service
	payments    paymentapi.Service
	checks      map[string]HealthCheck
	logger      *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(serviceName string, posts postapi.Service, payments paymentapi.Service, checks map[string]HealthCheck) *Router {
	router := &Router{
		handler:     NewJSONRPCHandler(),
		serviceName: serviceName,
		posts:       posts,
		payments:    payments,
		checks:      checks,
		logger:      logging.WithComponent("api-router"),
	}

	// Register all API methods
	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(otelgin.Middleware(r.serviceName))
	engine.Use(request.Viewer())

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	posts := postapi.NewPostAPI(r.posts)

	r.handler.RegisterMethod("post_api.list_posts", posts.ListPosts)
	r.handler.RegisterMethod("post_api.get_post", posts.GetPost)
	r.handler.RegisterMethod("post_api.create_post", posts.CreatePost)
	r.handler.RegisterMethod("post_api.update_post", posts.UpdatePost)
	r.handler.RegisterMethod("post_api.delete_post", posts.DeletePost)
	r.handler.RegisterMethod("post_api.list_drafts", posts.ListDrafts)
	r.handler.RegisterMethod("post_api.list_trending", posts.ListTrending)
	r.handler.RegisterMethod("post_api.list_following", posts.ListFollowing)
	r.handler.RegisterMethod("post_api.list_related", posts.ListRelated)

	r.handler.RegisterMethod("tag_api.list_tags", posts.ListTags)

	payments := paymentapi.NewPaymentAPI(r.payments)

	r.handler.RegisterMethod("payment_api.create_order", payments.CreateOrder)
	r.handler.RegisterMethod("payment_api.verify_payment", payments.VerifyPayment)
	r.handler.RegisterMethod("payment_api.has_paid", payments.HasPaid)

	r.logger.Debug("Registered JSON-RPC methods", zap.Strings("methods", r.handler.Methods()))
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "OK"
	if status != http.StatusOK {
		state = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"service":      r.serviceName,
		"dependencies": deps,
	})
}
