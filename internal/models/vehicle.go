package models

import (
	"time"
)

// OperationalStatus представляет рабочий статус автобуса
type OperationalStatus string

const (
	StatusInService    OperationalStatus = "IN_SERVICE"
	StatusOutOfService OperationalStatus = "OUT_OF_SERVICE"
	StatusOnBreak      OperationalStatus = "ON_BREAK"
	StatusEmergency    OperationalStatus = "EMERGENCY"
)

// IsValid проверяет, что статус входит в допустимое множество
func (s OperationalStatus) IsValid() bool {
	switch s {
	case StatusInService, StatusOutOfService, StatusOnBreak, StatusEmergency:
		return true
	}
	return false
}

// SeatTier представляет производную трехуровневую классификацию заполненности
type SeatTier string

const (
	TierEmpty    SeatTier = "EMPTY"
	TierFewSeats SeatTier = "FEW_SEATS"
	TierFull     SeatTier = "FULL"
)

// Vehicle модель автобуса — каноническое состояние принадлежит реестру,
// запись в БД используется для восстановления после перезапуска
type Vehicle struct {
	ID          string            `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`
	DriverID    *uint             `json:"driver_id" gorm:"column:driver_id;index"`
	Latitude    float64           `json:"latitude" gorm:"column:latitude;index:idx_vehicles_position"`
	Longitude   float64           `json:"longitude" gorm:"column:longitude;index:idx_vehicles_position"`
	Speed       float64           `json:"speed" gorm:"column:speed"`
	Heading     float64           `json:"heading" gorm:"column:heading"`
	Destination string            `json:"destination" gorm:"column:destination;type:varchar(100)"`
	Status      OperationalStatus `json:"status" gorm:"column:status;type:varchar(20);default:'OUT_OF_SERVICE'"`
	Occupancy   int               `json:"occupancy" gorm:"column:occupancy;default:0"`
	Capacity    int               `json:"capacity" gorm:"column:capacity;not null"`
	SeatTier    SeatTier          `json:"seat_tier" gorm:"column:seat_tier;type:varchar(20);default:'EMPTY'"`
	RouteID     *uint             `json:"route_id" gorm:"column:route_id;index"`
	Active      bool              `json:"active" gorm:"column:active;default:true;index"`
	LastUpdated time.Time         `json:"last_updated" gorm:"column:last_updated;type:timestamp with time zone"`
	CreatedAt   time.Time         `json:"created_at" gorm:"column:created_at;autoCreateTime;type:timestamp with time zone"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"column:updated_at;autoUpdateTime;type:timestamp with time zone"`
}

// VehicleSnapshot неизменяемая копия полей автобуса на момент коммита.
// Передается читателям и подписчикам, никогда не мутируется после создания
type VehicleSnapshot struct {
	ID          string            `json:"id"`
	DriverID    *uint             `json:"driver_id,omitempty"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Speed       float64           `json:"speed"`
	Heading     float64           `json:"heading"`
	Destination string            `json:"destination"`
	Status      OperationalStatus `json:"status"`
	Occupancy   int               `json:"occupancy"`
	Capacity    int               `json:"capacity"`
	SeatTier    SeatTier          `json:"seat_tier"`
	RouteID     *uint             `json:"route_id,omitempty"`
	Active      bool              `json:"active"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Snapshot создает снимок текущего состояния автобуса
func (v *Vehicle) Snapshot() VehicleSnapshot {
	return VehicleSnapshot{
		ID:          v.ID,
		DriverID:    v.DriverID,
		Latitude:    v.Latitude,
		Longitude:   v.Longitude,
		Speed:       v.Speed,
		Heading:     v.Heading,
		Destination: v.Destination,
		Status:      v.Status,
		Occupancy:   v.Occupancy,
		Capacity:    v.Capacity,
		SeatTier:    v.SeatTier,
		RouteID:     v.RouteID,
		Active:      v.Active,
		LastUpdated: v.LastUpdated,
	}
}
