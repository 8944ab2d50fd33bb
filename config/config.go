package config

type AppConfig struct {
	APIPort         string `env:"PORT,required" envDefault:"12222"`
	AppSource       string `env:"APP_SOURCE" envDefault:"bccstack"`
	RabbitMQURL     string `env:"RABBITMQ_URL"`
	StatusJWTSecret string `env:"STATUS_JWT_SECRET"`
	PodName         string `env:"POD_NAME" envDefault:"local"`
	PodNamespace    string `env:"POD_NAMESPACE" envDefault:"default"`
}

// RedisConfig backs the shared rate limit counters and the idempotency
// cache. With no URL both fall back to in-process state.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}
