package middleware

import (
	"net/http"
	"strings"

	"campus-fleet-backend/internal/models"
	"campus-fleet-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// JWTAuth проверяет Bearer-токен и кладет user_id и role в контекст запроса.
// Неизвестная роль в валидном токене приравнивается к студенту: мутации
// такому вызывающему все равно запрещены
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Отсутствует токен авторизации"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный формат токена"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительный токен"})
			c.Abort()
			return
		}

		role := claims.Role
		if !role.IsValid() {
			role = models.RoleStudent
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", role)
		c.Next()
	}
}

// CallerIdentity извлекает идентичность и роль вызывающего из контекста.
// Для запроса без JWTAuth возвращает нулевую идентичность и роль студента
func CallerIdentity(c *gin.Context) (uint, models.Role) {
	userID := uint(0)
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uint); ok {
			userID = id
		}
	}
	role := models.RoleStudent
	if v, ok := c.Get("role"); ok {
		if r, ok := v.(models.Role); ok {
			role = r
		}
	}
	return userID, role
}
