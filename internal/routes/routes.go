package routes

import (
	"campus-fleet-backend/internal/cache"
	"campus-fleet-backend/internal/fleet"
	"campus-fleet-backend/internal/geo"
	"campus-fleet-backend/internal/handlers"
	"campus-fleet-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Deps собранные компоненты ядра, к которым привязываются маршруты
type Deps struct {
	Registry   *fleet.Registry
	Authorizer *fleet.Authorizer
	GeoIndex   *geo.Index
	QueryCache *cache.QueryCache
}

func SetupRoutes(api *gin.RouterGroup, deps Deps) {
	// Публичная поверхность чтения: снимки, списки, запросы близости
	api.GET("/vehicles", handlers.VehicleListActive(deps.Registry))
	api.GET("/vehicles/nearby", handlers.VehicleGetNearby(deps.GeoIndex, deps.QueryCache))
	api.GET("/vehicles/:id", handlers.VehicleGetSnapshot(deps.Registry))

	// Защищенные маршруты (требуют аутентификации)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		// Администрирование автопарка
		protected.POST("/vehicles", handlers.VehicleRegister(deps.Registry, deps.Authorizer))
		protected.PUT("/vehicles/:id/driver", handlers.VehicleAssignDriver(deps.Registry, deps.Authorizer))
		protected.PUT("/vehicles/:id/deactivate", handlers.VehicleDeactivate(deps.Registry, deps.Authorizer))

		// Мутации от водителей и администраторов
		protected.PUT("/vehicles/:id/location", handlers.VehicleLocationUpdate(deps.Registry, deps.Authorizer))
		protected.PUT("/vehicles/:id/status", handlers.VehicleStatusUpdate(deps.Registry, deps.Authorizer))
	}
}
