package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DefaultUpdateInterval  = 5 * time.Minute
	DefaultImageTimeout    = 10 * time.Second
	DefaultTrafikverketURL = "https://api.trafikinfo.trafikverket.se"
)

type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type DetectorConfig struct {
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

type KafkaConfig struct {
	BrokerList       string `mapstructure:"broker_list"`
	UseLocal         bool   `mapstructure:"use_local"`
	SecurityProtocol string `mapstructure:"security_protocol"`
	SaslMechanism    string `mapstructure:"sasl_mechanism"`
	SaslUsername     string `mapstructure:"sasl_username"`
	SaslPassword     string `mapstructure:"sasl_password"`
	SessionTimeoutMs int    `mapstructure:"session_timeout_ms"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

type OutputConfig struct {
	Destinations []string `mapstructure:"destinations"`
	FilePath     string   `mapstructure:"file_path"`
}

type ControlConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
	Prefix     string `mapstructure:"prefix"`
}

type ArchiveConfig struct {
	Enabled      bool               `mapstructure:"enabled"`
	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage"`
}

type ExportConfig struct {
	OutputPath   string             `mapstructure:"output_path"`
	Destination  string             `mapstructure:"destination"` // "local" or "cloud"
	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage"`
}

type Config struct {
	APIKey          string        `mapstructure:"api_key"`
	TrafikverketURL string        `mapstructure:"trafikverket_url"`
	Cameras         []string      `mapstructure:"cameras"`
	UpdateInterval  time.Duration `mapstructure:"update_interval"`
	ImageTimeout    time.Duration `mapstructure:"image_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`

	Store    StoreConfig    `mapstructure:"store"`
	Detector DetectorConfig `mapstructure:"detector"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Output   OutputConfig   `mapstructure:"output"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Control  ControlConfig  `mapstructure:"control"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Export   ExportConfig   `mapstructure:"export"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	// keys without a meaningful default are still registered so that
	// AutomaticEnv can override them during Unmarshal
	v.SetDefault("api_key", "")
	v.SetDefault("cameras", []string{})
	v.SetDefault("store.dsn", "")
	v.SetDefault("detector.url", "")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("control.enabled", false)
	v.SetDefault("control.brokers", []string{})
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.cloud_storage.provider", "s3")
	v.SetDefault("archive.cloud_storage.bucket_name", "")

	v.SetDefault("trafikverket_url", DefaultTrafikverketURL)
	v.SetDefault("update_interval", DefaultUpdateInterval)
	v.SetDefault("image_timeout", DefaultImageTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.max_conns", 4)

	v.SetDefault("detector.kind", DetectorKindRemote)
	v.SetDefault("detector.timeout", 30*time.Second)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.bind", ":8080")

	v.SetDefault("output.destinations", []string{OutputConsole})
	v.SetDefault("output.file_path", "traffic_cycles.jsonl")

	v.SetDefault("kafka.broker_list", "localhost:9092")
	v.SetDefault("kafka.use_local", true)

	v.SetDefault("mqtt.client_id", "trafikcam")
	v.SetDefault("mqtt.topic_prefix", "trafikcam")

	v.SetDefault("control.topic", "camera_commands")
	v.SetDefault("control.group_id", "trafikcam")

	v.SetDefault("export.output_path", "export")
	v.SetDefault("export.destination", "local")
}

// LoadConfig reads the configuration file (if any), environment and
// defaults registered on v and decodes them into a Config.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("trafikcam")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return &config, nil
}

// Validate checks the settings needed to run the monitoring service.
func (cfg *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(cfg.APIKey) == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if cfg.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("update_interval must be positive, got %s", cfg.UpdateInterval))
	}
	if cfg.ImageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("image_timeout must be positive, got %s", cfg.ImageTimeout))
	}

	switch cfg.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver))
	}

	switch cfg.Detector.Kind {
	case DetectorKindNone:
	case DetectorKindRemote:
		if cfg.Detector.URL == "" {
			errs = append(errs, errors.New("detector.url is required for the remote detector"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported detector kind: %s", cfg.Detector.Kind))
	}

	for _, dest := range cfg.Output.Destinations {
		switch dest {
		case OutputConsole, OutputFile, OutputKafka:
		case OutputMQTT:
			if cfg.MQTT.Broker == "" {
				errs = append(errs, errors.New("mqtt.broker is required for the mqtt output"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported output destination: %s", dest))
		}
	}

	if cfg.Control.Enabled && len(cfg.Control.Brokers) == 0 {
		errs = append(errs, errors.New("control.brokers is required when the control consumer is enabled"))
	}
	if cfg.Archive.Enabled && cfg.Archive.CloudStorage.BucketName == "" {
		errs = append(errs, errors.New("archive.cloud_storage.bucket_name is required when archiving is enabled"))
	}

	return errors.Join(errs...)
}
