// server/internal/api/routes/routes.go
package routes

import (
	"time"

	"freshchain-ledger-server/config"
	"freshchain-ledger-server/internal/api/handlers"
	"freshchain-ledger-server/internal/api/middleware"
	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/ledger"
	"freshchain-ledger-server/internal/s3"
	"freshchain-ledger-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the components the router wires into handlers. S3Uploader may be nil.
type Dependencies struct {
	Ledger     *ledger.Ledger
	Users      handlers.UserRepository
	Issuer     *auth.TokenIssuer
	Hub        *socket.Hub
	S3Uploader *s3.Uploader
}

// SetupRouter builds the /api/v1 router.
func SetupRouter(cfg config.ServerConfig, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	registryHandler := &handlers.RegistryHandler{Ledger: deps.Ledger}
	batchHandler := &handlers.BatchHandler{Ledger: deps.Ledger, S3Uploader: deps.S3Uploader}
	userHandler := &handlers.UserHandler{Users: deps.Users, Issuer: deps.Issuer}
	webSocketHandler := &handlers.WebSocketHandler{Hub: deps.Hub, Issuer: deps.Issuer}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/login", userHandler.Login)
		}

		// Reads are public, like the view functions of the ledger.
		public := apiV1.Group("/")
		{
			public.GET("/owner", registryHandler.GetOwner)
			public.GET("/registry/:role/:address", registryHandler.HasRole)
			public.GET("/accounts/:address/roles", registryHandler.GetRoles)
			public.GET("/batches/:id", batchHandler.GetBatch)
			public.GET("/batches/:id/history", batchHandler.GetBatchHistory)
			public.GET("/batches/:id/counts", batchHandler.GetCounts)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.Authenticate(deps.Issuer))
		admin.Use(middleware.Authorize(auth.AccountRoleAdmin))
		{
			admin.POST("/users", userHandler.CreateUser)
		}

		// Every signed-in account may call a mutation; the ledger guard decides.
		ledgerRoutes := apiV1.Group("/")
		ledgerRoutes.Use(middleware.Authenticate(deps.Issuer))
		{
			ledgerRoutes.POST("/registry/:role", registryHandler.Register)

			batches := ledgerRoutes.Group("/batches")
			{
				batches.POST("", batchHandler.CreateBatch)
				batches.POST("/:id/sensor-data", batchHandler.AddSensorData)
				batches.POST("/:id/transfer", batchHandler.TransferOwnership)
				batches.POST("/:id/arrival", batchHandler.MarkAsArrived)
				batches.POST("/:id/export", batchHandler.ExportHistory)
			}
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
