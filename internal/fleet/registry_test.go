package fleet

import (
	"errors"
	"sync"
	"testing"

	"campus-fleet-backend/internal/models"
)

type geoCall struct {
	vehicleID string
	lat, lon  float64
}

type mockGeo struct {
	mu      sync.Mutex
	upserts []geoCall
	removes []string
}

func (m *mockGeo) Upsert(vehicleID string, lat, lon float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, geoCall{vehicleID: vehicleID, lat: lat, lon: lon})
}

func (m *mockGeo) Remove(vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes = append(m.removes, vehicleID)
}

type publishCall struct {
	vehicleID string
	kind      string
	snap      models.VehicleSnapshot
}

type mockPublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (m *mockPublisher) Publish(vehicleID, kind string, snap models.VehicleSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, publishCall{vehicleID: vehicleID, kind: kind, snap: snap})
}

func (m *mockPublisher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestRegistry() (*Registry, *mockGeo, *mockPublisher) {
	g := &mockGeo{}
	p := &mockPublisher{}
	r := NewRegistry(g, p, nil, []string{"CAMPUS", "CITY_CENTER"})
	return r, g, p
}

func registerVehicle(t *testing.T, r *Registry, capacity int) string {
	t.Helper()
	id, err := r.Register(RegisterSpec{
		Latitude:    20.35,
		Longitude:   85.81,
		Destination: "CAMPUS",
		Capacity:    capacity,
	})
	if err != nil {
		t.Fatalf("регистрация не удалась: %v", err)
	}
	return id
}

func TestRegister_Validation(t *testing.T) {
	r, _, _ := newTestRegistry()

	if _, err := r.Register(RegisterSpec{Destination: "CAMPUS", Capacity: 0}); !errors.Is(err, ErrValidation) {
		t.Errorf("вместимость 0: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.Register(RegisterSpec{Destination: "NOWHERE", Capacity: 45}); !errors.Is(err, ErrValidation) {
		t.Errorf("неизвестное направление: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.Register(RegisterSpec{Destination: "CAMPUS", Capacity: 45, Latitude: 91}); !errors.Is(err, ErrValidation) {
		t.Errorf("широта 91: ожидалась ErrValidation, получено %v", err)
	}
}

func TestRegister_InitialState(t *testing.T) {
	r, g, _ := newTestRegistry()
	id := registerVehicle(t, r, 45)

	snap, err := r.GetSnapshot(id)
	if err != nil {
		t.Fatalf("снимок не получен: %v", err)
	}
	if snap.Occupancy != 0 || snap.SeatTier != models.TierEmpty || !snap.Active {
		t.Errorf("неверное начальное состояние: occupancy=%d tier=%s active=%v", snap.Occupancy, snap.SeatTier, snap.Active)
	}
	if snap.Capacity != 45 {
		t.Errorf("вместимость %d, ожидалось 45", snap.Capacity)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.upserts) != 1 || g.upserts[0].vehicleID != id {
		t.Errorf("геоиндекс не обновлен при регистрации")
	}
}

func TestApplyLocationMutation(t *testing.T) {
	r, g, p := newTestRegistry()
	id := registerVehicle(t, r, 45)

	if _, err := r.ApplyLocationMutation("unknown", 20, 85, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("неизвестный id: ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := r.ApplyLocationMutation(id, 120, 85, 0, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("широта 120: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.ApplyLocationMutation(id, 20, 85, -5, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("отрицательная скорость: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.ApplyLocationMutation(id, 20, 85, 0, 360); !errors.Is(err, ErrValidation) {
		t.Errorf("курс 360: ожидалась ErrValidation, получено %v", err)
	}

	snap, err := r.ApplyLocationMutation(id, 20.355, 85.819, 12.5, 45)
	if err != nil {
		t.Fatalf("мутация местоположения не удалась: %v", err)
	}
	if snap.Latitude != 20.355 || snap.Longitude != 85.819 || snap.Speed != 12.5 || snap.Heading != 45 {
		t.Errorf("координаты не применены: %+v", snap)
	}
	// Заполненность и tier мутация местоположения не трогает
	if snap.Occupancy != 0 || snap.SeatTier != models.TierEmpty {
		t.Errorf("мутация местоположения затронула заполненность: occupancy=%d tier=%s", snap.Occupancy, snap.SeatTier)
	}

	g.mu.Lock()
	last := g.upserts[len(g.upserts)-1]
	g.mu.Unlock()
	if last.lat != 20.355 || last.lon != 85.819 {
		t.Errorf("геоиндекс не обновлен после коммита: %+v", last)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) != 1 {
		t.Fatalf("ожидалась ровно одна публикация на коммит, получено %d", len(p.calls))
	}
	if p.calls[0].kind != MutationLocation || p.calls[0].vehicleID != id {
		t.Errorf("неверная публикация: %+v", p.calls[0])
	}
}

func TestApplyStatusMutation_TierScenario(t *testing.T) {
	r, _, _ := newTestRegistry()
	id := registerVehicle(t, r, 45)

	occ := func(n int) *int { return &n }

	snap, err := r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Occupancy: occ(0)})
	if err != nil {
		t.Fatalf("мутация статуса не удалась: %v", err)
	}
	if snap.SeatTier != models.TierEmpty {
		t.Errorf("occupancy=0: tier=%s, ожидался EMPTY", snap.SeatTier)
	}

	// 41/45 ≈ 0.911 — выше порога 0.90
	snap, err = r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Occupancy: occ(41)})
	if err != nil {
		t.Fatalf("мутация статуса не удалась: %v", err)
	}
	if snap.SeatTier != models.TierFull {
		t.Errorf("occupancy=41: tier=%s, ожидался FULL", snap.SeatTier)
	}

	snap, err = r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Occupancy: occ(20)})
	if err != nil {
		t.Fatalf("мутация статуса не удалась: %v", err)
	}
	if snap.SeatTier != models.TierFewSeats {
		t.Errorf("occupancy=20: tier=%s, ожидался FEW_SEATS", snap.SeatTier)
	}
}

func TestApplyStatusMutation_Validation(t *testing.T) {
	r, _, p := newTestRegistry()
	id := registerVehicle(t, r, 45)
	before := p.callCount()

	occ := func(n int) *int { return &n }
	dest := func(s string) *string { return &s }

	if _, err := r.ApplyStatusMutation(id, StatusMutation{Status: "FLYING"}); !errors.Is(err, ErrValidation) {
		t.Errorf("неизвестный статус: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Occupancy: occ(-1)}); !errors.Is(err, ErrValidation) {
		t.Errorf("отрицательная заполненность: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Occupancy: occ(46)}); !errors.Is(err, ErrValidation) {
		t.Errorf("заполненность выше вместимости: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Destination: dest("NOWHERE")}); !errors.Is(err, ErrValidation) {
		t.Errorf("неизвестное направление: ожидалась ErrValidation, получено %v", err)
	}

	// Отклоненные мутации не публикуются и не меняют состояние
	if p.callCount() != before {
		t.Errorf("отклоненная мутация породила публикацию")
	}
	snap, _ := r.GetSnapshot(id)
	if snap.Status != models.StatusOutOfService {
		t.Errorf("отклоненная мутация изменила статус: %s", snap.Status)
	}
}

func TestLastUpdated_Monotonic(t *testing.T) {
	r, _, _ := newTestRegistry()
	id := registerVehicle(t, r, 45)

	prev, _ := r.GetSnapshot(id)
	for i := 0; i < 20; i++ {
		snap, err := r.ApplyLocationMutation(id, 20.0+float64(i)*0.001, 85.0, 5, 90)
		if err != nil {
			t.Fatalf("мутация %d не удалась: %v", i, err)
		}
		if snap.LastUpdated.Before(prev.LastUpdated) {
			t.Fatalf("lastUpdated убыл между коммитами: %v → %v", prev.LastUpdated, snap.LastUpdated)
		}
		prev = snap
	}
}

func TestDeactivate(t *testing.T) {
	r, g, _ := newTestRegistry()
	id := registerVehicle(t, r, 45)

	snap, err := r.Deactivate(id)
	if err != nil {
		t.Fatalf("деактивация не удалась: %v", err)
	}
	if snap.Active {
		t.Errorf("после деактивации active=true")
	}

	g.mu.Lock()
	removed := len(g.removes) == 1 && g.removes[0] == id
	g.mu.Unlock()
	if !removed {
		t.Errorf("автобус не удален из геоиндекса при деактивации")
	}

	// Деактивированный автобус остается адресуемым по id
	if _, err := r.GetSnapshot(id); err != nil {
		t.Errorf("снимок деактивированного автобуса недоступен: %v", err)
	}

	// Но для мутаций он эквивалентен несуществующему
	if _, err := r.ApplyLocationMutation(id, 20, 85, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("мутация деактивированного: ожидалась ErrNotFound, получено %v", err)
	}

	// И не попадает в список активных
	for _, v := range r.ListActive(ListFilter{}) {
		if v.ID == id {
			t.Errorf("деактивированный автобус в списке активных")
		}
	}
}

func TestListActive_Filter(t *testing.T) {
	r, _, _ := newTestRegistry()
	id1 := registerVehicle(t, r, 45)
	id2 := registerVehicle(t, r, 30)

	if _, err := r.ApplyStatusMutation(id1, StatusMutation{Status: models.StatusInService}); err != nil {
		t.Fatalf("мутация статуса не удалась: %v", err)
	}

	all := r.ListActive(ListFilter{})
	if len(all) != 2 {
		t.Fatalf("ожидалось 2 активных автобуса, получено %d", len(all))
	}

	inService := r.ListActive(ListFilter{Status: models.StatusInService})
	if len(inService) != 1 || inService[0].ID != id1 {
		t.Errorf("фильтр по статусу вернул неверный результат: %+v", inService)
	}

	outOfService := r.ListActive(ListFilter{Status: models.StatusOutOfService})
	if len(outOfService) != 1 || outOfService[0].ID != id2 {
		t.Errorf("фильтр по статусу OUT_OF_SERVICE вернул неверный результат: %+v", outOfService)
	}
}

// Снимок, наблюдаемый в любой момент, внутренне согласован: tier всегда
// соответствует заполненности из того же снимка
func TestConcurrentMutations_NoTornState(t *testing.T) {
	r, _, p := newTestRegistry()
	id := registerVehicle(t, r, 45)

	var wg sync.WaitGroup
	for i := 0; i < 45; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			occ := n
			if _, err := r.ApplyStatusMutation(id, StatusMutation{Status: models.StatusInService, Occupancy: &occ}); err != nil {
				t.Errorf("конкурентная мутация не удалась: %v", err)
			}
		}(i)
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) != 45 {
		t.Errorf("ожидалось 45 публикаций, получено %d", len(p.calls))
	}
	for _, call := range p.calls {
		want := DeriveTier(call.snap.Occupancy, call.snap.Capacity)
		if call.snap.SeatTier != want {
			t.Errorf("рассогласованный снимок: occupancy=%d tier=%s", call.snap.Occupancy, call.snap.SeatTier)
		}
	}

	final, _ := r.GetSnapshot(id)
	if final.SeatTier != DeriveTier(final.Occupancy, final.Capacity) {
		t.Errorf("итоговый снимок рассогласован: occupancy=%d tier=%s", final.Occupancy, final.SeatTier)
	}
}
