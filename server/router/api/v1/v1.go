package v1

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sukritx/piyanutai/internal/profile"
	"github.com/sukritx/piyanutai/server/chat"
	"github.com/sukritx/piyanutai/server/middleware"
	"github.com/sukritx/piyanutai/store"
)

// APIV1Service wires the REST API under /api/v1.
type APIV1Service struct {
	Secret   string
	Profile  *profile.Profile
	Store    *store.Store
	Pipeline *chat.Pipeline

	limiter *middleware.RateLimiter
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, pipeline *chat.Pipeline) *APIV1Service {
	return &APIV1Service{
		Secret:   secret,
		Profile:  profile,
		Store:    store,
		Pipeline: pipeline,

		// One request per second per user with a burst of five covers
		// interactive chat while keeping runaway clients off the AI APIs.
		limiter: middleware.NewRateLimiter(time.Second, 5),
	}
}

// Register mounts all v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	apiV1 := e.Group("/api/v1")

	authGroup := apiV1.Group("/auth")
	authGroup.POST("/signup", s.Signup)
	authGroup.POST("/signin", s.Signin)
	authGroup.GET("/me", s.Me, s.JWTMiddleware)

	chatGroup := apiV1.Group("/chat", s.JWTMiddleware)
	chatGroup.POST("", s.CreateChat)
	chatGroup.GET("", s.ListChats)
	chatGroup.GET("/:id", s.GetChat)
	chatGroup.DELETE("/:id", s.DeleteChat)
	chatGroup.POST("/message", s.SendMessage, s.rateLimitMiddleware)
}
