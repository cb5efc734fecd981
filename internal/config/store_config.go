package config

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Store struct {
	Backend        string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"marketplace-auth:"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	return s.Backend
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisKeyPrefix() string {
	return s.RedisKeyPrefix
}
