package config

import (
	"errors"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Postgres DBConfig
	Redis    RedisConfig
	S3       S3Config
	Logger   Logger
	Worker   WorkerConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	AppVersion string
	Port       string
	Mode       string
}

// WorkerConfig sizes the shared encode pool. WorkerCount is the number of
// simultaneous transcodes system-wide; QueueSize bounds how many accepted
// uploads may wait for a slot. RejectWhenFull switches submission from
// blocking to failing fast with a retryable error once the queue is full.
type WorkerConfig struct {
	WorkerCount    int
	QueueSize      int
	MaxCPUUsage    float64
	RejectWhenFull bool
}

type PipelineConfig struct {
	UploadDir           string
	MaxFileSizeBytes    int64
	MaxDurationSeconds  int
	AllowedExtensions   []string
	ProbeTimeoutSec     int
	EncodeTimeoutSec    int
	ThumbnailTimeoutSec int
	ThumbnailWidth      int
	CRF                 int
	Preset              string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	PgDriver string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	JobStatusKey  string
}

type S3Config struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.WorkerCount <= 0 {
		c.Worker.WorkerCount = 2
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = c.Worker.WorkerCount * 2
	}
	if c.Pipeline.MaxFileSizeBytes <= 0 {
		c.Pipeline.MaxFileSizeBytes = 500 << 20
	}
	if c.Pipeline.MaxDurationSeconds <= 0 {
		c.Pipeline.MaxDurationSeconds = 180
	}
	if len(c.Pipeline.AllowedExtensions) == 0 {
		c.Pipeline.AllowedExtensions = []string{"mp4", "mov", "avi", "webm", "mkv"}
	}
	if c.Pipeline.ProbeTimeoutSec <= 0 {
		c.Pipeline.ProbeTimeoutSec = 30
	}
	if c.Pipeline.EncodeTimeoutSec <= 0 {
		c.Pipeline.EncodeTimeoutSec = 300
	}
	if c.Pipeline.ThumbnailTimeoutSec <= 0 {
		c.Pipeline.ThumbnailTimeoutSec = 30
	}
	if c.Pipeline.ThumbnailWidth <= 0 {
		c.Pipeline.ThumbnailWidth = 480
	}
	if c.Pipeline.CRF <= 0 {
		c.Pipeline.CRF = 23
	}
	if c.Pipeline.Preset == "" {
		c.Pipeline.Preset = "veryfast"
	}
}
