package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Cache   CacheConfig   `yaml:"cache"`
	Users   []User        `yaml:"users"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   int      `yaml:"rate_limit"` // requests per minute per client IP
}

type StorageConfig struct {
	Driver string      `yaml:"driver"` // minio, gcs
	Minio  MinioConfig `yaml:"minio"`
	GCS    GCSConfig   `yaml:"gcs"`
}

type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	Region        string `yaml:"region"`
	ExpireMinutes int    `yaml:"expire_minutes"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	ExpireMinutes   int    `yaml:"expire_minutes"`
}

type AIConfig struct {
	Mode                string  `yaml:"mode"` // live, mock
	APIKey              string  `yaml:"api_key"`
	Model               string  `yaml:"model"`
	Temperature         float32 `yaml:"temperature"`
	MaxOutputTokens     int32   `yaml:"max_output_tokens"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// Mock reports whether analyses are served without calling the model
func (c AIConfig) Mock() bool {
	return strings.EqualFold(c.Mode, "mock")
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Driver       string `yaml:"driver"` // memory, postgres, sqlite
	DSN          string `yaml:"dsn"`
	MaxDocuments int    `yaml:"max_documents"`
}

type CacheConfig struct {
	Driver        string `yaml:"driver"` // memory, redis, none
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLMinutes    int    `yaml:"ttl_minutes"`
}

type User struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"` // plain or bcrypt hash
	Role       string `yaml:"role"`     // hr, employee
	EmployeeID string `yaml:"employee_id"`
	Name       string `yaml:"name"`
}

// Load reads the YAML file at path, overlays a .env file found next to the
// working directory and applies environment overrides for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.AI.APIKey, "GEMINI_API_KEY")
	setString(&c.AI.Mode, "AI_MODE")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.Minio.Bucket, "MINIO_BUCKET")
	setString(&c.Storage.Minio.Region, "MINIO_REGION")
	setString(&c.Store.DSN, "DATABASE_DSN")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "minio"
	}
	if c.Storage.Minio.ExpireMinutes == 0 {
		c.Storage.Minio.ExpireMinutes = 15
	}
	if c.Storage.GCS.ExpireMinutes == 0 {
		c.Storage.GCS.ExpireMinutes = 15
	}
	if c.AI.Mode == "" {
		c.AI.Mode = "live"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.1
	}
	if c.AI.MaxOutputTokens == 0 {
		c.AI.MaxOutputTokens = 1024
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.ConfidenceThreshold == 0 {
		c.AI.ConfidenceThreshold = 0.8
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 60
	}
	for i := range c.Users {
		if c.Users[i].Role == "" {
			c.Users[i].Role = "employee"
		}
		if c.Users[i].EmployeeID == "" {
			c.Users[i].EmployeeID = c.Users[i].Username
		}
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
