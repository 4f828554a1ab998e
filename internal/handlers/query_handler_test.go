package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"campus-fleet-backend/internal/fleet"
	"campus-fleet-backend/internal/geo"
	"campus-fleet-backend/internal/models"

	"github.com/gin-gonic/gin"
)

type noopPublisher struct{}

func (noopPublisher) Publish(vehicleID, kind string, snap models.VehicleSnapshot) {}

func newQueryRouter() (*gin.Engine, *fleet.Registry) {
	gin.SetMode(gin.TestMode)
	reg := fleet.NewRegistry(geo.NewIndex(), noopPublisher{}, nil, []string{"CAMPUS", "CITY_CENTER"})
	router := gin.New()
	router.GET("/vehicles", VehicleListActive(reg))
	router.GET("/vehicles/:id", VehicleGetSnapshot(reg))
	return router, reg
}

func listVehicles(t *testing.T, router *gin.Engine, query string) []models.VehicleSnapshot {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vehicles"+query, nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Vehicles []models.VehicleSnapshot `json:"vehicles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	return body.Vehicles
}

// Список активных автобусов читается напрямую из реестра: каждая
// зафиксированная мутация видна уже в следующем запросе
func TestVehicleListActive_ReflectsLatestCommit(t *testing.T) {
	router, reg := newQueryRouter()

	id, err := reg.Register(fleet.RegisterSpec{
		Latitude:    20.35,
		Longitude:   85.81,
		Destination: "CAMPUS",
		Capacity:    45,
	})
	if err != nil {
		t.Fatalf("регистрация не удалась: %v", err)
	}

	vehicles := listVehicles(t, router, "")
	if len(vehicles) != 1 || vehicles[0].Occupancy != 0 {
		t.Fatalf("ожидался один автобус с загрузкой 0, получено %+v", vehicles)
	}

	occupancy := 30
	if _, err := reg.ApplyStatusMutation(id, fleet.StatusMutation{
		Status:    models.StatusInService,
		Occupancy: &occupancy,
	}); err != nil {
		t.Fatalf("мутация статуса не удалась: %v", err)
	}

	vehicles = listVehicles(t, router, "")
	if len(vehicles) != 1 || vehicles[0].Occupancy != 30 {
		t.Fatalf("список не отражает последний коммит: %+v", vehicles)
	}
	if vehicles[0].Status != models.StatusInService {
		t.Errorf("статус после коммита %s, ожидался %s", vehicles[0].Status, models.StatusInService)
	}

	if _, err := reg.Deactivate(id); err != nil {
		t.Fatalf("деактивация не удалась: %v", err)
	}
	if vehicles = listVehicles(t, router, ""); len(vehicles) != 0 {
		t.Errorf("деактивированный автобус остался в списке: %+v", vehicles)
	}
}

func TestVehicleListActive_InvalidStatus(t *testing.T) {
	router, _ := newQueryRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vehicles?status=PARKED", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400 для неизвестного статуса, получен %d", w.Code)
	}
}
