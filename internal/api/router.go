package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/accountd/internal/app"
	iauth "github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/handlers"
	"github.com/charlesng35/accountd/internal/middleware"
	"github.com/charlesng35/accountd/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config       *app.Config
	Tokens       *iauth.TokenService
	Accounts     *services.AccountService
	Verification *services.VerificationService
	// Health is pinged by GET /health. Nil reports ok unconditionally.
	Health handlers.Pinger
}

// NewRouter builds the Gin engine, wires middleware and registers the account routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}

	authHandler, err := handlers.NewAuthHandler(deps.Accounts, handlers.CookieConfig{
		MaxAge: deps.Config.Auth.CookieMaxAge(),
		Secure: deps.Config.Server.IsProduction(),
	})
	if err != nil {
		return nil, err
	}
	bvnHandler, err := handlers.NewVerificationHandler(deps.Verification)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	if deps.Config.Server.IsDevelopment() {
		r.Use(middleware.Logger())
	}
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(deps.Config.Server.IsProduction()))
	r.Use(middleware.CORS())

	r.GET("/health", handlers.Health(deps.Health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgotpassword", authHandler.ForgotPassword)
		auth.PUT("/resetpassword/:resettoken", authHandler.ResetPassword)
	}

	private := auth.Group("")
	private.Use(middleware.Auth(deps.Tokens))
	{
		private.GET("/logout", authHandler.Logout)
		private.GET("/me", authHandler.Me)
		private.PUT("/updatedetails", authHandler.UpdateDetails)
		private.PUT("/updatepassword", authHandler.UpdatePassword)

		private.POST("/bvn", bvnHandler.Request)
		private.POST("/bvn/verify", bvnHandler.Verify)
		private.GET("/bvn/status", bvnHandler.Status)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
