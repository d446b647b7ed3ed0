package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Meta      MetaConfig
	R2        R2Config
	Warehouse WarehouseConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ADSBOARD_APP_ENV" required:"true"`
	Port         string `envconfig:"ADSBOARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ADSBOARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ADSBOARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ADSBOARD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ADSBOARD_DB_DSN"`
	Driver string `envconfig:"ADSBOARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ADSBOARD_DB_HOST"`
	LegacyPort     int    `envconfig:"ADSBOARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ADSBOARD_DB_USER"`
	LegacyPassword string `envconfig:"ADSBOARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"ADSBOARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"ADSBOARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ADSBOARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ADSBOARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ADSBOARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ADSBOARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"ADSBOARD_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ADSBOARD_REDIS_URL"`
	Address      string        `envconfig:"ADSBOARD_REDIS_ADDR"`
	Password     string        `envconfig:"ADSBOARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"ADSBOARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ADSBOARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ADSBOARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ADSBOARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ADSBOARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ADSBOARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint is configured at all. The listing
// cache degrades to direct API calls when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type MetaConfig struct {
	AccessToken string        `envconfig:"ADSBOARD_META_ACCESS_TOKEN" required:"true"`
	BaseURL     string        `envconfig:"ADSBOARD_META_BASE_URL" default:"https://graph.facebook.com/v24.0"`
	PageSize    int           `envconfig:"ADSBOARD_META_PAGE_SIZE" default:"100"`
	HTTPTimeout time.Duration `envconfig:"ADSBOARD_META_HTTP_TIMEOUT" default:"30s"`
}

type R2Config struct {
	EndpointURL  string `envconfig:"ADSBOARD_R2_ENDPOINT_URL"`
	AccessKeyID  string `envconfig:"ADSBOARD_R2_ACCESS_KEY_ID"`
	SecretKey    string `envconfig:"ADSBOARD_R2_SECRET_ACCESS_KEY"`
	BucketName   string `envconfig:"ADSBOARD_R2_BUCKET_NAME"`
	PublicDomain string `envconfig:"ADSBOARD_R2_PUBLIC_DOMAIN"`
}

// Enabled reports whether image offloading has credentials; without them the
// pipeline keeps the source CDN URLs.
func (r R2Config) Enabled() bool {
	return r.AccessKeyID != "" && r.SecretKey != "" && r.BucketName != ""
}

type WarehouseConfig struct {
	AccountDenylist []string      `envconfig:"ADSBOARD_ACCOUNT_DENYLIST"`
	ChunkDays       int           `envconfig:"ADSBOARD_REFRESH_CHUNK_DAYS" default:"1"`
	DayDelay        time.Duration `envconfig:"ADSBOARD_REFRESH_DAY_DELAY" default:"4s"`
	TaskDelay       time.Duration `envconfig:"ADSBOARD_REFRESH_TASK_DELAY" default:"1500ms"`
	CacheTTL        time.Duration `envconfig:"ADSBOARD_ACCOUNT_CACHE_TTL" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		db.DSN = normalizeScheme(db.DSN)
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

// Heroku hands out postgresql:// DSNs; the pgx dialector accepts both but the
// normalized form keeps log/test comparisons stable.
func normalizeScheme(dsn string) string {
	if strings.HasPrefix(dsn, "postgresql://") {
		return "postgres://" + strings.TrimPrefix(dsn, "postgresql://")
	}
	return dsn
}
