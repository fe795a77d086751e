package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Auth          AuthConfig          `json:"auth"`
	Geocoding     GeocodingConfig     `json:"geocoding"`
	Deforestation DeforestationConfig `json:"deforestation"`
	Map           MapConfig           `json:"map"`
	Storage       StorageConfig       `json:"storage"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host" validate:"required"`
	Port           int           `json:"port" validate:"min=1,max=65535"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name" validate:"required"`
	SSLMode        string        `json:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConnections int           `json:"max_connections" validate:"min=0"`
	MaxIdleConns   int           `json:"max_idle_conns" validate:"min=0"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" validate:"required,min=16"`
	Issuer    string `json:"issuer"`
}

// GeocodingConfig selects and tunes the location search provider
type GeocodingConfig struct {
	Provider     string        `json:"provider" validate:"oneof=google nominatim none"`
	GoogleAPIKey string        `json:"google_api_key" validate:"required_if=Provider google"`
	NominatimURL string        `json:"nominatim_url" validate:"omitempty,url"`
	UserAgent    string        `json:"user_agent"`
	Region       string        `json:"region"`
	QPS          float64       `json:"qps" validate:"min=0"`
	Limit        int           `json:"limit" validate:"min=0,max=50"`
	CacheTTL     time.Duration `json:"cache_ttl"`
	SearchDelay  time.Duration `json:"search_delay"`
}

// DeforestationConfig points at the inference service and the recheck job
type DeforestationConfig struct {
	URL              string        `json:"url" validate:"omitempty,url"`
	APIKey           string        `json:"api_key"`
	Timeout          time.Duration `json:"timeout"`
	LookbackYears    int           `json:"lookback_years" validate:"min=1,max=30"`
	RecheckSchedule  string        `json:"recheck_schedule"`
	RecheckBatchSize int           `json:"recheck_batch_size" validate:"min=0"`
}

// MapConfig configures draw sessions
type MapConfig struct {
	DefaultLat    float64 `json:"default_lat" validate:"min=-90,max=90"`
	DefaultLng    float64 `json:"default_lng" validate:"min=-180,max=180"`
	DefaultZoom   int     `json:"default_zoom" validate:"min=0,max=22"`
	CenterMethod  string  `json:"center_method" validate:"oneof=vertex_mean bounding_box"`
	PaddingX      int     `json:"padding_x" validate:"min=0"`
	PaddingY      int     `json:"padding_y" validate:"min=0"`
	IconURL       string  `json:"icon_url"`
	IconRetinaURL string  `json:"icon_retina_url"`
	ShadowURL     string  `json:"shadow_url"`
}

// StorageConfig configures the S3 bucket exports are archived to. An empty
// bucket disables archiving.
type StorageConfig struct {
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	UsePathStyle    bool          `json:"use_path_style"`
	PresignTTL      time.Duration `json:"presign_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level" validate:"oneof=debug info warn error"`
	Development bool   `json:"development"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "agrotrace_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Geocoding: GeocodingConfig{
			Provider:     "nominatim",
			NominatimURL: "https://nominatim.openstreetmap.org",
			UserAgent:    "agrotrace-portal/1.0",
			QPS:          1,
			Limit:        5,
			CacheTTL:     time.Hour,
			SearchDelay:  300 * time.Millisecond,
		},
		Deforestation: DeforestationConfig{
			Timeout:          30 * time.Second,
			LookbackYears:    5,
			RecheckSchedule:  "0 2 * * *",
			RecheckBatchSize: 50,
		},
		Map: MapConfig{
			DefaultLat:   -2.5,
			DefaultLng:   118,
			DefaultZoom:  5,
			CenterMethod: "vertex_mean",
			PaddingX:     50,
			PaddingY:     50,
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			PresignTTL: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file and environment variables, then
// validates the result. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	var errs []error
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("SERVER_HOST", &config.Server.Host)
	setInt("SERVER_PORT", &config.Server.Port)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	setString("DATABASE_HOST", &config.Database.Host)
	setInt("DATABASE_PORT", &config.Database.Port)
	setString("DATABASE_USER", &config.Database.User)
	setString("DATABASE_PASSWORD", &config.Database.Password)
	setString("DATABASE_DBNAME", &config.Database.DBName)
	setString("DATABASE_SSLMODE", &config.Database.SSLMode)
	setBool("DATABASE_AUTO_MIGRATE", &config.Database.AutoMigrate)

	setString("JWT_SECRET", &config.Auth.JWTSecret)
	setString("JWT_ISSUER", &config.Auth.Issuer)

	setString("GEOCODING_PROVIDER", &config.Geocoding.Provider)
	setString("GOOGLE_MAPS_API_KEY", &config.Geocoding.GoogleAPIKey)
	setString("NOMINATIM_URL", &config.Geocoding.NominatimURL)
	setFloat("GEOCODING_QPS", &config.Geocoding.QPS)
	setDuration("GEOCODING_SEARCH_DELAY", &config.Geocoding.SearchDelay)

	setString("DEFORESTATION_URL", &config.Deforestation.URL)
	setString("DEFORESTATION_API_KEY", &config.Deforestation.APIKey)
	setDuration("DEFORESTATION_TIMEOUT", &config.Deforestation.Timeout)
	setString("DEFORESTATION_RECHECK_SCHEDULE", &config.Deforestation.RecheckSchedule)

	setFloat("MAP_DEFAULT_LAT", &config.Map.DefaultLat)
	setFloat("MAP_DEFAULT_LNG", &config.Map.DefaultLng)
	setInt("MAP_DEFAULT_ZOOM", &config.Map.DefaultZoom)
	setString("MAP_CENTER_METHOD", &config.Map.CenterMethod)
	setString("MAP_ICON_URL", &config.Map.IconURL)
	setString("MAP_ICON_RETINA_URL", &config.Map.IconRetinaURL)
	setString("MAP_SHADOW_URL", &config.Map.ShadowURL)

	setString("S3_BUCKET", &config.Storage.Bucket)
	setString("S3_REGION", &config.Storage.Region)
	setString("S3_ENDPOINT", &config.Storage.Endpoint)
	setString("AWS_ACCESS_KEY_ID", &config.Storage.AccessKeyID)
	setString("AWS_SECRET_ACCESS_KEY", &config.Storage.SecretAccessKey)
	setBool("S3_USE_PATH_STYLE", &config.Storage.UsePathStyle)

	setString("LOG_LEVEL", &config.Logging.Level)
	setBool("LOG_DEVELOPMENT", &config.Logging.Development)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks field constraints and reports every violation by its
// config key.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", key, fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s failed %s", key, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
