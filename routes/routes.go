package routes

import (
	"net/http"
	"time"

	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/handlers"
	"github.com/LovationAdmin/horizon-api/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	BankLink *handlers.BankLinkHandler
	Home     *handlers.HomeHandler
	WS       *handlers.WSHandler
	Sessions middleware.UserResolver
}

func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimiter(cfg.Server.RateLimitPerMinute))

	v1 := router.Group("/api/v1")
	SetupAuthRoutes(v1, h.Auth)

	protected := v1.Group("/")
	protected.Use(middleware.Session(h.Sessions, cfg.Session.CookieName))
	{
		SetupSessionRoutes(protected, h.Auth)
		SetupBankLinkRoutes(protected, h.BankLink)
		SetupHomeRoutes(protected, h.Home)
		protected.GET("/ws", h.WS.HandleWS)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	return router
}

// SetupAuthRoutes sets up public authentication routes.
func SetupAuthRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler) {
	rg.POST("/auth/sign-up", h.SignUp)
	rg.POST("/auth/sign-in", h.SignIn)
}

// SetupSessionRoutes sets up routes acting on the caller's own session.
func SetupSessionRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler) {
	rg.POST("/auth/sign-out", h.SignOut)
	rg.GET("/auth/me", h.Me)
}

func SetupBankLinkRoutes(rg *gin.RouterGroup, h *handlers.BankLinkHandler) {
	rg.POST("/plaid/link-token", h.CreateLinkToken)
	rg.POST("/plaid/exchange", h.ExchangePublicToken)
}

func SetupHomeRoutes(rg *gin.RouterGroup, h *handlers.HomeHandler) {
	rg.GET("/home", h.GetHome)
	rg.GET("/accounts/:shareableId", h.GetAccount)
}
