package models

import (
	"time"
)

// Role представляет замкнутое множество ролей пользователя
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleDriver  Role = "DRIVER"
	RoleAdmin   Role = "ADMIN"
)

// IsValid проверяет, что роль входит в допустимое множество
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// User учетная запись пользователя. Выпуск сессий и хранение учетных данных —
// зона ответственности внешнего сервиса идентификации, здесь только профиль и роль
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	FirstName string    `json:"firstName" gorm:"column:first_name;not null;type:varchar(255)"`
	LastName  string    `json:"lastName" gorm:"column:last_name;not null;type:varchar(255)"`
	Email     string    `json:"email" gorm:"column:email;unique;not null;type:varchar(255)"`
	Role      Role      `json:"role" gorm:"column:role;default:'STUDENT';type:varchar(20)"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime;type:timestamp with time zone"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime;type:timestamp with time zone"`
}
