// Package broker ведет учет живых наблюдателей по каждому автобусу и
// рассылает им зафиксированные снимки. Брокер — явно создаваемый экземпляр,
// а не глобальное состояние пакета: живет и умирает вместе с процессом
package broker

import (
	"log"
	"sync"
	"time"

	"campus-fleet-backend/internal/fleet"
	"campus-fleet-backend/internal/middleware"
	"campus-fleet-backend/internal/models"
)

// Типы исходящих событий наблюдательского протокола
const (
	VehicleSnapshotType = "VEHICLE_SNAPSHOT"
	LocationChangedType = "LOCATION_CHANGED"
	StatusChangedType   = "STATUS_CHANGED"
)

// Event сообщение наблюдательского протокола
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// LocationPayload полезная нагрузка события locationChanged
type LocationPayload struct {
	VehicleID   string    `json:"vehicle_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Speed       float64   `json:"speed"`
	Heading     float64   `json:"heading"`
	LastUpdated time.Time `json:"last_updated"`
}

// StatusPayload полезная нагрузка события statusChanged
type StatusPayload struct {
	VehicleID   string                   `json:"vehicle_id"`
	Status      models.OperationalStatus `json:"status"`
	Occupancy   int                      `json:"occupancy"`
	Capacity    int                      `json:"capacity"`
	SeatTier    models.SeatTier          `json:"seat_tier"`
	Destination string                   `json:"destination"`
	Active      bool                     `json:"active"`
	LastUpdated time.Time                `json:"last_updated"`
}

// Subscriber одно клиентское соединение. Send обязан не блокироваться:
// доставка медленному наблюдателю не должна задерживать ни коммит,
// ни остальных подписчиков. false означает, что событие отброшено
type Subscriber interface {
	Send(event Event) bool
}

// SnapshotSource источник текущих снимков для немедленной отправки при join.
// Реализуется реестром
type SnapshotSource interface {
	GetSnapshot(vehicleID string) (models.VehicleSnapshot, error)
}

type connState struct {
	sub      Subscriber
	vehicles map[string]bool
}

// Broker хранит по каждому автобусу множество подписанных соединений.
// Собственная блокировка не связана с по-автобусными замками реестра:
// это разные ресурсы с независимой защитой
type Broker struct {
	mu        sync.RWMutex
	conns     map[string]*connState
	rooms     map[string]map[string]*connState
	snapshots SnapshotSource
}

func NewBroker(snapshots SnapshotSource) *Broker {
	return &Broker{
		conns:     make(map[string]*connState),
		rooms:     make(map[string]map[string]*connState),
		snapshots: snapshots,
	}
}

// Join подписывает соединение на автобус и синхронно отправляет ему текущий
// снимок, чтобы поздно присоединившийся наблюдатель не остался без
// начального состояния. Сначала членство, затем снимок: коммит, попавший
// между этими шагами, доставляется как обычное событие, а снимок оказывается
// не старее него — наблюдатель не застревает на устаревшем состоянии.
// Ошибка реестра (неизвестный id) возвращается вызывающему
func (b *Broker) Join(connID string, sub Subscriber, vehicleID string) error {
	b.mu.Lock()
	state, ok := b.conns[connID]
	if !ok {
		state = &connState{sub: sub, vehicles: make(map[string]bool)}
		b.conns[connID] = state
	}
	added := !state.vehicles[vehicleID]
	state.vehicles[vehicleID] = true
	room, ok := b.rooms[vehicleID]
	if !ok {
		room = make(map[string]*connState)
		b.rooms[vehicleID] = room
	}
	room[connID] = state
	b.mu.Unlock()

	snap, err := b.snapshots.GetSnapshot(vehicleID)
	if err != nil {
		if added {
			b.Leave(connID, vehicleID)
		}
		return err
	}

	middleware.SetSubscriptions(b.subscriptionCount())

	if !sub.Send(Event{Type: VehicleSnapshotType, Payload: snap}) {
		log.Printf("Начальный снимок автобуса %s не доставлен соединению %s", vehicleID, connID)
	}
	return nil
}

// Leave отписывает соединение от автобуса. Идемпотентен: повторный вызов
// и вызов для неизвестной пары безопасны
func (b *Broker) Leave(connID, vehicleID string) {
	b.mu.Lock()
	if state, ok := b.conns[connID]; ok {
		delete(state.vehicles, vehicleID)
	}
	if room, ok := b.rooms[vehicleID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(b.rooms, vehicleID)
		}
	}
	b.mu.Unlock()

	middleware.SetSubscriptions(b.subscriptionCount())
}

// Disconnect снимает все подписки соединения за одну операцию.
// Идемпотентен; после возврата соединению не будет доставлено ни одного события
func (b *Broker) Disconnect(connID string) {
	b.mu.Lock()
	state, ok := b.conns[connID]
	if ok {
		for vehicleID := range state.vehicles {
			if room, exists := b.rooms[vehicleID]; exists {
				delete(room, connID)
				if len(room) == 0 {
					delete(b.rooms, vehicleID)
				}
			}
		}
		delete(b.conns, connID)
	}
	b.mu.Unlock()

	if ok {
		middleware.SetSubscriptions(b.subscriptionCount())
	}
}

// Publish доставляет снимок всем текущим подписчикам автобуса. Вызывается
// реестром ровно один раз на зафиксированный коммит; порядок событий по
// одному автобусу совпадает с порядком коммитов. Доставка best-effort:
// событие, не поместившееся в буфер наблюдателя, отбрасывается
func (b *Broker) Publish(vehicleID, kind string, snap models.VehicleSnapshot) {
	event := formatEvent(kind, snap)

	b.mu.RLock()
	room := b.rooms[vehicleID]
	targets := make([]Subscriber, 0, len(room))
	for _, state := range room {
		targets = append(targets, state.sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if sub.Send(event) {
			middleware.TrackEventDelivered(event.Type)
		} else {
			middleware.TrackEventDropped(event.Type)
		}
	}
}

func formatEvent(kind string, snap models.VehicleSnapshot) Event {
	if kind == fleet.MutationLocation {
		return Event{
			Type: LocationChangedType,
			Payload: LocationPayload{
				VehicleID:   snap.ID,
				Latitude:    snap.Latitude,
				Longitude:   snap.Longitude,
				Speed:       snap.Speed,
				Heading:     snap.Heading,
				LastUpdated: snap.LastUpdated,
			},
		}
	}
	return Event{
		Type: StatusChangedType,
		Payload: StatusPayload{
			VehicleID:   snap.ID,
			Status:      snap.Status,
			Occupancy:   snap.Occupancy,
			Capacity:    snap.Capacity,
			SeatTier:    snap.SeatTier,
			Destination: snap.Destination,
			Active:      snap.Active,
			LastUpdated: snap.LastUpdated,
		},
	}
}

func (b *Broker) subscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, room := range b.rooms {
		total += len(room)
	}
	return total
}
