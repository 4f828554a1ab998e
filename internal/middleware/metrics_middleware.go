package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight - количество запросов в обработке
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Текущее количество запросов в обработке",
		},
	)

	// VehicleCommitsTotal - количество зафиксированных мутаций по видам
	VehicleCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_vehicle_commits_total",
			Help: "Общее количество зафиксированных мутаций состояния автобусов",
		},
		[]string{"kind"},
	)

	// EventsDeliveredTotal - события, доставленные подписчикам
	EventsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_events_delivered_total",
			Help: "Количество событий, доставленных подписчикам",
		},
		[]string{"type"},
	)

	// EventsDroppedTotal - события, отброшенные из-за медленных наблюдателей
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_events_dropped_total",
			Help: "Количество событий, отброшенных из-за переполнения буфера наблюдателя",
		},
		[]string{"type"},
	)

	// SubscriptionsActive - текущее количество подписок на автобусы
	SubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_subscriptions_active",
			Help: "Текущее количество подписок наблюдателей на автобусы",
		},
	)

	// WSConnectionsActive - текущее количество WebSocket соединений
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_ws_connections_active",
			Help: "Текущее количество открытых WebSocket соединений",
		},
	)
)

// PrometheusMiddleware собирает метрики для HTTP запросов
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Увеличиваем счетчик запросов в обработке
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		// Фиксируем время начала запроса
		start := time.Now()

		// Обрабатываем запрос
		c.Next()

		// Вычисляем длительность запроса
		duration := time.Since(start).Seconds()

		// Получаем статус код и эндпоинт
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		// Увеличиваем счетчик запросов
		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()

		// Добавляем длительность запроса
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// TrackVehicleCommit отмечает зафиксированную мутацию состояния
func TrackVehicleCommit(kind string) {
	VehicleCommitsTotal.WithLabelValues(kind).Inc()
}

// TrackEventDelivered отмечает доставленное подписчику событие
func TrackEventDelivered(eventType string) {
	EventsDeliveredTotal.WithLabelValues(eventType).Inc()
}

// TrackEventDropped отмечает отброшенное событие
func TrackEventDropped(eventType string) {
	EventsDroppedTotal.WithLabelValues(eventType).Inc()
}

// SetSubscriptions обновляет датчик текущего количества подписок
func SetSubscriptions(n int) {
	SubscriptionsActive.Set(float64(n))
}

// TrackWSConnection отмечает открытие (+1) или закрытие (-1) WebSocket соединения
func TrackWSConnection(delta int) {
	WSConnectionsActive.Add(float64(delta))
}
