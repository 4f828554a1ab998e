package fleet

import (
	"fmt"
	"log"
	"sync"
	"time"

	"campus-fleet-backend/internal/middleware"
	"campus-fleet-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GeoUpdater проекция позиций для запросов близости, обновляется после коммита
type GeoUpdater interface {
	Upsert(vehicleID string, lat, lon float64)
	Remove(vehicleID string)
}

// Виды мутаций, передаваемые издателю вместе со снимком. Объявлены здесь,
// на стороне контракта Publisher, и используются и реестром, и брокером
const (
	MutationRegister     = "register"
	MutationLocation     = "location"
	MutationStatus       = "status"
	MutationAssignDriver = "assign_driver"
	MutationDeactivate   = "deactivate"
)

// Publisher получает снимок ровно один раз на каждый зафиксированный коммит.
// kind — вид мутации, по нему брокер выбирает тип исходящего события
type Publisher interface {
	Publish(vehicleID, kind string, snap models.VehicleSnapshot)
}

// RegisterSpec параметры регистрации нового автобуса
type RegisterSpec struct {
	DriverID    *uint
	Latitude    float64
	Longitude   float64
	Destination string
	Capacity    int
	RouteID     *uint
}

// StatusMutation параметры мутации статуса; nil-поля не трогают текущее значение
type StatusMutation struct {
	Status      models.OperationalStatus
	Occupancy   *int
	Destination *string
	RouteID     *uint
}

// ListFilter фильтр выборки активных автобусов
type ListFilter struct {
	Status      models.OperationalStatus
	Destination string
}

// vehicleEntry запись реестра. mu сериализует писателей по одному автобусу,
// snapMu защищает только подмену указателя на зафиксированный снимок,
// поэтому читатели никогда не ждут выполняющуюся мутацию
type vehicleEntry struct {
	mu     sync.Mutex
	state  models.Vehicle
	snapMu sync.RWMutex
	snap   models.VehicleSnapshot
}

func (e *vehicleEntry) commit(snap models.VehicleSnapshot) {
	e.snapMu.Lock()
	e.snap = snap
	e.snapMu.Unlock()
}

func (e *vehicleEntry) snapshot() models.VehicleSnapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

// Registry владеет каноническим состоянием всех автобусов. Мутации одного
// автобуса выполняются строго по одной, мутации разных автобусов — параллельно
type Registry struct {
	mu           sync.RWMutex
	vehicles     map[string]*vehicleEntry
	destinations map[string]bool
	geo          GeoUpdater
	publisher    Publisher
	db           *gorm.DB
}

// NewRegistry создает реестр. db может быть nil (без сквозной записи в БД),
// destinations — внешне сконфигурированное множество допустимых направлений
func NewRegistry(geo GeoUpdater, publisher Publisher, db *gorm.DB, destinations []string) *Registry {
	allowed := make(map[string]bool, len(destinations))
	for _, d := range destinations {
		allowed[d] = true
	}
	return &Registry{
		vehicles:     make(map[string]*vehicleEntry),
		destinations: allowed,
		geo:          geo,
		publisher:    publisher,
		db:           db,
	}
}

// LoadFromStore восстанавливает реестр и геоиндекс из БД после перезапуска
func (r *Registry) LoadFromStore() error {
	if r.db == nil {
		return nil
	}

	var stored []models.Vehicle
	if err := r.db.Find(&stored).Error; err != nil {
		return fmt.Errorf("не удалось загрузить автобусы из БД: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range stored {
		entry := &vehicleEntry{state: v, snap: v.Snapshot()}
		r.vehicles[v.ID] = entry
		if v.Active {
			r.geo.Upsert(v.ID, v.Latitude, v.Longitude)
		}
	}

	log.Printf("Реестр восстановлен из БД: %d автобусов", len(stored))
	return nil
}

// Register регистрирует новый автобус и возвращает его идентификатор
func (r *Registry) Register(spec RegisterSpec) (string, error) {
	if spec.Capacity < 1 {
		return "", validationErrorf("вместимость должна быть не меньше 1, получено %d", spec.Capacity)
	}
	if !r.destinations[spec.Destination] {
		return "", validationErrorf("недопустимое направление %q", spec.Destination)
	}
	if err := validateCoordinates(spec.Latitude, spec.Longitude); err != nil {
		return "", err
	}

	now := time.Now()
	v := models.Vehicle{
		ID:          uuid.NewString(),
		DriverID:    spec.DriverID,
		Latitude:    spec.Latitude,
		Longitude:   spec.Longitude,
		Destination: spec.Destination,
		Status:      models.StatusOutOfService,
		Occupancy:   0,
		Capacity:    spec.Capacity,
		SeatTier:    models.TierEmpty,
		RouteID:     spec.RouteID,
		Active:      true,
		LastUpdated: now,
	}

	entry := &vehicleEntry{state: v, snap: v.Snapshot()}

	r.mu.Lock()
	r.vehicles[v.ID] = entry
	r.mu.Unlock()

	r.geo.Upsert(v.ID, v.Latitude, v.Longitude)
	r.persist(v)
	middleware.TrackVehicleCommit(MutationRegister)

	log.Printf("Зарегистрирован автобус %s, вместимость %d, направление %s", v.ID, v.Capacity, v.Destination)
	return v.ID, nil
}

// ApplyLocationMutation обновляет координаты, скорость и курс автобуса.
// Заполненность и tier не затрагиваются
func (r *Registry) ApplyLocationMutation(id string, lat, lon, speed, heading float64) (models.VehicleSnapshot, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return models.VehicleSnapshot{}, err
	}
	if speed < 0 {
		return models.VehicleSnapshot{}, validationErrorf("скорость не может быть отрицательной: %f", speed)
	}
	if heading < 0 || heading >= 360 {
		return models.VehicleSnapshot{}, validationErrorf("курс должен быть в диапазоне [0,360): %f", heading)
	}

	return r.mutate(id, MutationLocation, func(v *models.Vehicle) error {
		v.Latitude = lat
		v.Longitude = lon
		v.Speed = speed
		v.Heading = heading
		return nil
	})
}

// ApplyStatusMutation обновляет рабочий статус и, опционально, заполненность,
// направление и маршрут. Если передана заполненность, tier пересчитывается
// до фиксации — читатель никогда не увидит occupancy с устаревшим tier
func (r *Registry) ApplyStatusMutation(id string, m StatusMutation) (models.VehicleSnapshot, error) {
	if !m.Status.IsValid() {
		return models.VehicleSnapshot{}, validationErrorf("недопустимый статус %q", m.Status)
	}
	if m.Occupancy != nil && *m.Occupancy < 0 {
		return models.VehicleSnapshot{}, validationErrorf("заполненность не может быть отрицательной: %d", *m.Occupancy)
	}
	if m.Destination != nil && !r.destinations[*m.Destination] {
		return models.VehicleSnapshot{}, validationErrorf("недопустимое направление %q", *m.Destination)
	}

	return r.mutate(id, MutationStatus, func(v *models.Vehicle) error {
		if m.Occupancy != nil {
			if *m.Occupancy > v.Capacity {
				return validationErrorf("заполненность %d превышает вместимость %d", *m.Occupancy, v.Capacity)
			}
			v.Occupancy = *m.Occupancy
			v.SeatTier = DeriveTier(v.Occupancy, v.Capacity)
		}
		if m.Destination != nil {
			v.Destination = *m.Destination
		}
		if m.RouteID != nil {
			v.RouteID = m.RouteID
		}
		v.Status = m.Status
		return nil
	})
}

// AssignDriver закрепляет водителя за автобусом
func (r *Registry) AssignDriver(id string, driverID uint) (models.VehicleSnapshot, error) {
	return r.mutate(id, MutationAssignDriver, func(v *models.Vehicle) error {
		v.DriverID = &driverID
		return nil
	})
}

// Deactivate мягко выводит автобус из эксплуатации: запись остается адресуемой
// по id, но исключается из геоиндекса и списков по умолчанию
func (r *Registry) Deactivate(id string) (models.VehicleSnapshot, error) {
	snap, err := r.mutate(id, MutationDeactivate, func(v *models.Vehicle) error {
		v.Active = false
		return nil
	})
	if err != nil {
		return models.VehicleSnapshot{}, err
	}
	r.geo.Remove(id)
	return snap, nil
}

// mutate общий путь коммита: сериализация по автобусу, проверка активности,
// применение мутации к копии, проверка инварианта, продвижение lastUpdated,
// подмена снимка, обновление геоиндекса и публикация — в этом порядке
func (r *Registry) mutate(id, kind string, apply func(*models.Vehicle) error) (models.VehicleSnapshot, error) {
	r.mu.RLock()
	entry, ok := r.vehicles[id]
	r.mu.RUnlock()
	if !ok {
		return models.VehicleSnapshot{}, notFoundError(id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.state.Active {
		return models.VehicleSnapshot{}, notFoundError(id)
	}

	next := entry.state
	if err := apply(&next); err != nil {
		return models.VehicleSnapshot{}, err
	}

	// Нарушение инварианта производного поля — ошибка программиста,
	// падаем громко вместо фиксации рассогласованного состояния
	if want := DeriveTier(next.Occupancy, next.Capacity); next.SeatTier != want {
		panic(fmt.Sprintf("реестр: tier %s не соответствует заполненности %d/%d (ожидается %s) для автобуса %s",
			next.SeatTier, next.Occupancy, next.Capacity, want, id))
	}

	// lastUpdated монотонно не убывает даже при сдвиге системных часов
	now := time.Now()
	if now.Before(entry.state.LastUpdated) {
		now = entry.state.LastUpdated
	}
	next.LastUpdated = now

	entry.state = next
	snap := next.Snapshot()
	entry.commit(snap)

	if kind == MutationLocation {
		r.geo.Upsert(id, next.Latitude, next.Longitude)
	}
	r.publisher.Publish(id, kind, snap)
	r.persist(next)
	middleware.TrackVehicleCommit(kind)

	return snap, nil
}

// GetSnapshot возвращает последний зафиксированный снимок. Деактивированные
// автобусы остаются адресуемыми по id
func (r *Registry) GetSnapshot(id string) (models.VehicleSnapshot, error) {
	r.mu.RLock()
	entry, ok := r.vehicles[id]
	r.mu.RUnlock()
	if !ok {
		return models.VehicleSnapshot{}, notFoundError(id)
	}
	return entry.snapshot(), nil
}

// DriverRef возвращает закрепленного водителя для проверки прав.
// Второй результат — существует ли активный автобус с таким id
func (r *Registry) DriverRef(id string) (*uint, bool) {
	r.mu.RLock()
	entry, ok := r.vehicles[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	snap := entry.snapshot()
	if !snap.Active {
		return nil, false
	}
	return snap.DriverID, true
}

// ListActive возвращает снимки активных автобусов с фильтрацией по статусу
// и направлению. Порядок не специфицирован, но стабилен в пределах вызова
func (r *Registry) ListActive(filter ListFilter) []models.VehicleSnapshot {
	r.mu.RLock()
	entries := make([]*vehicleEntry, 0, len(r.vehicles))
	for _, entry := range r.vehicles {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	result := make([]models.VehicleSnapshot, 0, len(entries))
	for _, entry := range entries {
		snap := entry.snapshot()
		if !snap.Active {
			continue
		}
		if filter.Status != "" && snap.Status != filter.Status {
			continue
		}
		if filter.Destination != "" && snap.Destination != filter.Destination {
			continue
		}
		result = append(result, snap)
	}
	return result
}

// persist сквозная запись зафиксированного снимка в БД. Канонично состояние
// в памяти, поэтому ошибка записи логируется, но не отменяет коммит
func (r *Registry) persist(v models.Vehicle) {
	if r.db == nil {
		return
	}
	if err := r.db.Save(&v).Error; err != nil {
		log.Printf("Ошибка сохранения автобуса %s в БД: %v", v.ID, err)
	}
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return validationErrorf("широта вне диапазона [-90,90]: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return validationErrorf("долгота вне диапазона [-180,180]: %f", lon)
	}
	return nil
}
