package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Channels ChannelConfig
	Session  SessionConfig
	Ledger   LedgerConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Reminder ReminderConfig
	Alerts   AlertConfig
	Admin    AdminConfig
}

// ChannelConfig names the channels and roles the bot operates against.
type ChannelConfig struct {
	StaffChannelID   string   `envconfig:"STAFF_CHANNEL_ID" required:"true"`
	EconomyChannelID string   `envconfig:"ECONOMY_CHANNEL_ID" required:"true"`
	AlertChannelID   string   `envconfig:"ALERT_CHANNEL_ID" default:""`
	StaffRoleIDs     []string `envconfig:"STAFF_ROLE_IDS" required:"true"`
	MentionRoleIDs   []string `envconfig:"MENTION_ROLE_IDS" default:""`
}

// SessionConfig controls the cart session store.
type SessionConfig struct {
	Backend string        `envconfig:"SESSION_BACKEND" default:"memory"` // memory or redis
	Timeout time.Duration `envconfig:"SESSION_TIMEOUT" default:"15m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LedgerConfig controls the order ledger backend.
type LedgerConfig struct {
	Backend string `envconfig:"LEDGER_BACKEND" default:"file"` // file or postgres
	Path    string `envconfig:"LEDGER_PATH" default:"./data/orders.json"`

	PostgresHost     string `envconfig:"LEDGER_DB_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"LEDGER_DB_PORT" default:"5432"`
	PostgresName     string `envconfig:"LEDGER_DB_NAME" default:"trader"`
	PostgresUser     string `envconfig:"LEDGER_DB_USER" default:"postgres"`
	PostgresPassword string `envconfig:"LEDGER_DB_PASS" default:""`
	PostgresSSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`
}

// KafkaConfig names the broker and the topics bridging the chat relay.
type KafkaConfig struct {
	Brokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	InboundTopic  string   `envconfig:"KAFKA_INBOUND_TOPIC" default:"trader.inbound"`
	OutboundTopic string   `envconfig:"KAFKA_OUTBOUND_TOPIC" default:"trader.outbound"`
	EventsTopic   string   `envconfig:"KAFKA_EVENTS_TOPIC" default:"trader.order-events"`
	GroupID       string   `envconfig:"KAFKA_GROUP_ID" default:"trader-bot"`
}

// CatalogConfig locates the price catalog document.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH" default:"./data/catalog.json"`
}

// ReminderConfig controls the stale-order reminder sweep.
type ReminderConfig struct {
	Enabled  bool          `envconfig:"REMINDER_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"REMINDER_INTERVAL" default:"1h"`
	MaxAge   time.Duration `envconfig:"REMINDER_MAX_AGE" default:"24h"`
	LogPath  string        `envconfig:"REMINDER_LOG_PATH" default:"./data/reminders.log"`
}

// AlertConfig controls the restricted-keyword order scan.
type AlertConfig struct {
	Enabled  bool          `envconfig:"ALERT_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"ALERT_INTERVAL" default:"10m"`
	Keywords []string      `envconfig:"ALERT_KEYWORDS" default:"40mm Explosive Grenade,M79,Plastic Explosives,Landmines,Claymores"`
	Minimum  int           `envconfig:"ALERT_MIN_QUANTITY" default:"3"`
	Tracker  string        `envconfig:"ALERT_TRACKER_PATH" default:"./data/alert_tracker.json"`
}

// AdminConfig holds the admin HTTP API settings.
type AdminConfig struct {
	Enabled           bool   `envconfig:"ADMIN_ENABLED" default:"false"`
	Addr              string `envconfig:"ADMIN_ADDR" default:":8080"`
	JWTSecret         string `envconfig:"ADMIN_JWT_SECRET" default:""`
	AdminUser         string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" default:""`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// RedisAddress returns the Redis address in host:port format.
func (s *SessionConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string for the ledger.
func (l *LedgerConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		l.PostgresUser, l.PostgresPassword, l.PostgresHost, l.PostgresPort,
		l.PostgresName, l.PostgresSSLMode)
}
