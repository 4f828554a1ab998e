package handlers

import (
	"errors"
	"log"
	"net/http"

	"campus-fleet-backend/internal/fleet"
	"campus-fleet-backend/internal/middleware"
	"campus-fleet-backend/internal/models"

	"github.com/gin-gonic/gin"
)

type VehicleRegisterRequest struct {
	DriverID    *uint   `json:"driver_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Destination string  `json:"destination" binding:"required"`
	Capacity    int     `json:"capacity" binding:"required"`
	RouteID     *uint   `json:"route_id"`
}

type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
	Speed     float64 `json:"speed" binding:"min=0"`
	Heading   float64 `json:"heading" binding:"min=0,lt=360"`
}

type StatusUpdateRequest struct {
	Status      models.OperationalStatus `json:"status" binding:"required"`
	Occupancy   *int                     `json:"occupancy"`
	Destination *string                  `json:"destination"`
	RouteID     *uint                    `json:"route_id"`
}

type AssignDriverRequest struct {
	DriverID uint `json:"driver_id" binding:"required"`
}

// respondFleetError сопоставляет классификацию ошибок ядра с HTTP статусами.
// Ответ содержит вид отказа и id автобуса, но не детали внутреннего состояния
func respondFleetError(c *gin.Context, vehicleID string, err error) {
	status := http.StatusInternalServerError
	message := "Внутренняя ошибка сервера"

	switch {
	case errors.Is(err, fleet.ErrValidation):
		status = http.StatusBadRequest
		message = "Некорректные данные запроса"
	case errors.Is(err, fleet.ErrNotFound):
		status = http.StatusNotFound
		message = "Автобус не найден"
	case errors.Is(err, fleet.ErrPermissionDenied):
		status = http.StatusForbidden
		message = "Доступ запрещен"
	case errors.Is(err, fleet.ErrConflict):
		status = http.StatusConflict
		message = "Конфликт версий"
	default:
		log.Printf("Необработанная ошибка ядра: %v", err)
	}

	body := gin.H{"error": message}
	if vehicleID != "" {
		body["vehicle_id"] = vehicleID
	}
	c.JSON(status, body)
}

// VehicleRegister регистрирует новый автобус. Только для администраторов
func VehicleRegister(reg *fleet.Registry, authz *fleet.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role := middleware.CallerIdentity(c)
		if err := authz.AuthorizeAdmin(role); err != nil {
			respondFleetError(c, "", err)
			return
		}

		var req VehicleRegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных: " + err.Error()})
			return
		}

		id, err := reg.Register(fleet.RegisterSpec{
			DriverID:    req.DriverID,
			Latitude:    req.Latitude,
			Longitude:   req.Longitude,
			Destination: req.Destination,
			Capacity:    req.Capacity,
			RouteID:     req.RouteID,
		})
		if err != nil {
			respondFleetError(c, "", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"vehicle_id": id})
	}
}

// VehicleLocationUpdate принимает мутацию местоположения от водителя или
// администратора. Проверка прав выполняется до обращения к реестру:
// отклоненный вызов не меняет состояние и не порождает рассылку
func VehicleLocationUpdate(reg *fleet.Registry, authz *fleet.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID := c.Param("id")
		callerID, role := middleware.CallerIdentity(c)

		if err := authz.Authorize(callerID, role, vehicleID); err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		var req LocationUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных: " + err.Error()})
			return
		}

		snap, err := reg.ApplyLocationMutation(vehicleID, req.Latitude, req.Longitude, req.Speed, req.Heading)
		if err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

// VehicleStatusUpdate принимает мутацию статуса и заполненности
func VehicleStatusUpdate(reg *fleet.Registry, authz *fleet.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID := c.Param("id")
		callerID, role := middleware.CallerIdentity(c)

		if err := authz.Authorize(callerID, role, vehicleID); err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		var req StatusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных: " + err.Error()})
			return
		}

		snap, err := reg.ApplyStatusMutation(vehicleID, fleet.StatusMutation{
			Status:      req.Status,
			Occupancy:   req.Occupancy,
			Destination: req.Destination,
			RouteID:     req.RouteID,
		})
		if err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

// VehicleAssignDriver закрепляет водителя за автобусом. Только для администраторов
func VehicleAssignDriver(reg *fleet.Registry, authz *fleet.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID := c.Param("id")
		_, role := middleware.CallerIdentity(c)

		if err := authz.AuthorizeAdmin(role); err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		var req AssignDriverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных: " + err.Error()})
			return
		}

		snap, err := reg.AssignDriver(vehicleID, req.DriverID)
		if err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

// VehicleDeactivate мягко выводит автобус из эксплуатации. Только для администраторов
func VehicleDeactivate(reg *fleet.Registry, authz *fleet.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID := c.Param("id")
		_, role := middleware.CallerIdentity(c)

		if err := authz.AuthorizeAdmin(role); err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		snap, err := reg.Deactivate(vehicleID)
		if err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}
