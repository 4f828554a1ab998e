package cache

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// QueryCache кэширует ответы горячих запросов чтения (nearest, список
// активных) в Redis с коротким TTL. При недоступном Redis или выключенном
// кэшировании все операции no-op — запросы идут напрямую в реестр
type QueryCache struct {
	redisClient *redis.Client
	ttl         time.Duration
	enabled     bool
}

// NewQueryCache создает кэш запросов. client может быть nil — тогда
// кэширование отключено независимо от CACHE_ENABLED
func NewQueryCache(client *redis.Client) *QueryCache {
	cacheEnabled := os.Getenv("CACHE_ENABLED") == "true"
	if !cacheEnabled || client == nil {
		return &QueryCache{enabled: false}
	}

	// TTL короткий: позиции автобусов устаревают за секунды
	ttl := 2
	if val, err := strconv.Atoi(os.Getenv("QUERY_CACHE_TTL_SECONDS")); err == nil && val > 0 {
		ttl = val
	}

	return &QueryCache{
		redisClient: client,
		ttl:         time.Duration(ttl) * time.Second,
		enabled:     true,
	}
}

// Get получает данные из кэша. Возвращает false, если ключа нет
// или кэширование отключено
func (c *QueryCache) Get(ctx context.Context, key string, result interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, err
	}
	return true, nil
}

// Set сохраняет данные в кэш с настроенным TTL
func (c *QueryCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.redisClient.Set(ctx, key, data, c.ttl).Err()
}
