package config

import (
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/pricing"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Stripe   Stripe   `yaml:"stripe"`
	Pricing  Pricing  `yaml:"pricing"`
	Auth     Auth     `yaml:"auth"`
	Tracing  Tracing  `yaml:"tracing"`
}

type HTTP struct {
	Port   string `yaml:"port" env:"HTTP_PORT" env-default:":8080"`
	WSPort string `yaml:"ws_port" env:"WS_PORT" env-default:":8081"`
}

type Postgres struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers           []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	NotificationTopic string   `yaml:"notification_topic" env:"KAFKA_NOTIFICATION_TOPIC" env-default:"notification_events"`
}

type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	SuccessURL    string `yaml:"success_url" env:"STRIPE_SUCCESS_URL" env-default:"http://localhost:5173/payments/success/"`
	CancelURL     string `yaml:"cancel_url" env:"STRIPE_CANCEL_URL" env-default:"http://localhost:5173/payments/cancel/"`
}

type Pricing struct {
	TaxRate     string `yaml:"tax_rate" env:"TAX_RATE" env-default:"0"`
	StandardFee string `yaml:"standard_fee" env:"DELIVERY_FEE_STANDARD" env-default:"0.00"`
	ExpressFee  string `yaml:"express_fee" env:"DELIVERY_FEE_EXPRESS" env-default:"0.00"`
	PickupFee   string `yaml:"pickup_fee" env:"DELIVERY_FEE_PICKUP" env-default:"0.00"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"OTLP_ENDPOINT" env-default:"localhost:4318"`
}

func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/local.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %v", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}
	return &cfg
}

// TaxRate parses the configured rate, e.g. "0.05" for 5%.
func (p Pricing) Rate() decimal.Decimal {
	return mustDecimal(p.TaxRate)
}

func (p Pricing) Fees() pricing.FeeTable {
	return pricing.FeeTable{
		domain.DeliveryStandard: mustDecimal(p.StandardFee),
		domain.DeliveryExpress:  mustDecimal(p.ExpressFee),
		domain.DeliveryPickup:   mustDecimal(p.PickupFee),
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("invalid decimal in config: %q", s)
	}
	return d
}
