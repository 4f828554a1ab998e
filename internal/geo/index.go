// Package geo хранит проекцию текущих позиций активных автобусов и отвечает
// на запросы близости. Индекс обновляется только реестром после коммита,
// поэтому может отставать от снимка максимум на один коммит, но никогда
// не опережает зафиксированное состояние
package geo

import (
	"math"
	"sort"
	"sync"
)

const earthRadiusMeters = 6371000

// Match результат запроса близости
type Match struct {
	VehicleID      string  `json:"vehicle_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

type position struct {
	lat float64
	lon float64
}

// Index потокобезопасный индекс позиций в памяти
type Index struct {
	mu        sync.RWMutex
	positions map[string]position
}

func NewIndex() *Index {
	return &Index{positions: make(map[string]position)}
}

// Upsert заменяет индексированную позицию автобуса
func (idx *Index) Upsert(vehicleID string, lat, lon float64) {
	idx.mu.Lock()
	idx.positions[vehicleID] = position{lat: lat, lon: lon}
	idx.mu.Unlock()
}

// Remove убирает автобус из индекса; вызывается при деактивации.
// Безопасно вызывать для неизвестного id
func (idx *Index) Remove(vehicleID string) {
	idx.mu.Lock()
	delete(idx.positions, vehicleID)
	idx.mu.Unlock()
}

// Nearest возвращает не более limit автобусов в радиусе radiusMeters от точки,
// по возрастанию расстояния. limit <= 0 означает без ограничения
func (idx *Index) Nearest(lat, lon, radiusMeters float64, limit int) []Match {
	idx.mu.RLock()
	matches := make([]Match, 0, len(idx.positions))
	for id, pos := range idx.positions {
		dist := haversine(lat, lon, pos.lat, pos.lon)
		if dist <= radiusMeters {
			matches = append(matches, Match{VehicleID: id, DistanceMeters: dist})
		}
	}
	idx.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
