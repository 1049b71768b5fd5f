package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port      string        `env:"PORT" envDefault:"8080"`
	GinMode   string        `env:"GIN_MODE" envDefault:"release"`
	MongoURI  string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName    string        `env:"DB_NAME" envDefault:"storefront"`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpire time.Duration `env:"JWT_EXPIRE" envDefault:"24h"`

	Stripe Stripe `envPrefix:"STRIPE_"`
	Policy Policy
}

// Load reads .env (when present) into the process environment and parses
// AppEnv from it.
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] [INFO] .env not loaded:", err)
	}

	cfg, err := Parse()
	if err != nil {
		return err
	}
	AppEnv = cfg
	return nil
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}
