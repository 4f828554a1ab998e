package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"campus-fleet-backend/internal/cache"
	"campus-fleet-backend/internal/fleet"
	"campus-fleet-backend/internal/geo"
	"campus-fleet-backend/internal/models"

	"github.com/gin-gonic/gin"
)

// VehicleGetSnapshot возвращает последний зафиксированный снимок автобуса.
// Деактивированные автобусы остаются адресуемыми по id
func VehicleGetSnapshot(reg *fleet.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID := c.Param("id")

		snap, err := reg.GetSnapshot(vehicleID)
		if err != nil {
			respondFleetError(c, vehicleID, err)
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

// VehicleListActive возвращает активные автобусы с фильтрацией по статусу
// и направлению. Список читается напрямую из реестра без кэша: ответ
// всегда отражает последние зафиксированные снимки
func VehicleListActive(reg *fleet.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := fleet.ListFilter{
			Status:      models.OperationalStatus(c.Query("status")),
			Destination: c.Query("destination"),
		}

		if filter.Status != "" && !filter.Status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Недопустимый статус %q", filter.Status)})
			return
		}

		c.JSON(http.StatusOK, gin.H{"vehicles": reg.ListActive(filter)})
	}
}

// VehicleGetNearby отвечает на запрос близости: автобусы в радиусе от точки,
// по возрастанию расстояния. Деактивированные автобусы не возвращаются
func VehicleGetNearby(idx *geo.Index, qc *cache.QueryCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil || lat < -90 || lat > 90 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр lat обязателен и должен быть в диапазоне [-90,90]"})
			return
		}
		lon, err := strconv.ParseFloat(c.Query("lon"), 64)
		if err != nil || lon < -180 || lon > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр lon обязателен и должен быть в диапазоне [-180,180]"})
			return
		}

		radius := 1000.0
		if raw := c.Query("radius"); raw != "" {
			radius, err = strconv.ParseFloat(raw, 64)
			if err != nil || radius <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр radius должен быть положительным числом метров"})
				return
			}
		}

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Параметр limit должен быть положительным целым"})
				return
			}
		}

		// Ключ кэша по округленным координатам: позиции запроса ближе
		// ~10 метров делят один ответ в пределах TTL
		cacheKey := fmt.Sprintf("fleet:nearby:%.4f:%.4f:%.0f:%d", lat, lon, radius, limit)
		var cached []geo.Match
		if hit, err := qc.Get(c.Request.Context(), cacheKey, &cached); err != nil {
			log.Printf("Ошибка чтения кэша %s: %v", cacheKey, err)
		} else if hit {
			c.JSON(http.StatusOK, gin.H{"vehicles": cached})
			return
		}

		matches := idx.Nearest(lat, lon, radius, limit)
		if err := qc.Set(c.Request.Context(), cacheKey, matches); err != nil {
			log.Printf("Ошибка записи кэша %s: %v", cacheKey, err)
		}

		c.JSON(http.StatusOK, gin.H{"vehicles": matches})
	}
}
