package models

import (
	"time"
)

// RouteStop представляет остановку маршрута
type RouteStop struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RouteID   uint      `json:"route_id" gorm:"index"`
	OrderNum  int       `json:"order_num"` // Порядковый номер остановки в маршруте
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Route маршрут кампусного автобуса. CRUD маршрутов ведет внешний сервис,
// здесь схема нужна только как цель для route_id автобуса
type Route struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	Name      string      `json:"name" gorm:"unique;not null;type:varchar(255)"`
	Stops     []RouteStop `json:"stops" gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}
