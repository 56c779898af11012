package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MemoryConfig holds in-memory/JSON archive backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// ArchiveConfig selects and configures the catalog archive backend
type ArchiveConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// FeedConfig holds the upstream earthquake feed settings
type FeedConfig struct {
	BaseURL     string        `json:"baseUrl" mapstructure:"baseUrl"`
	Contributor string        `json:"contributor" mapstructure:"contributor"`
	CacheTTL    time.Duration `json:"cacheTtl" mapstructure:"cacheTtl"`
}

// PlaybackConfig holds the time-lapse playback settings
type PlaybackConfig struct {
	DaysPerSecond float64 `json:"daysPerSecond" mapstructure:"daysPerSecond"`
	FrameRateHz   int     `json:"frameRateHz" mapstructure:"frameRateHz"`
	ColorRamp     string  `json:"colorRamp" mapstructure:"colorRamp"`
	AutoResume    bool    `json:"autoResume" mapstructure:"autoResume"`
}

// StreamConfig holds the scene frame streaming settings
type StreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Token   string `json:"token" mapstructure:"token"`
}

// OTelConfig holds OpenTelemetry exporter settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./quakelogs")

	viper.SetDefault("feed.baseUrl", "https://earthquake.usgs.gov")
	viper.SetDefault("feed.contributor", "")
	viper.SetDefault("feed.cacheTtl", "10m")

	viper.SetDefault("terrain.sceneWidth", 8192)
	viper.SetDefault("terrain.sceneHeight", 8192)

	viper.SetDefault("playback.daysPerSecond", 1.0)
	viper.SetDefault("playback.frameRateHz", 30)
	viper.SetDefault("playback.colorRamp", "classic")
	viper.SetDefault("playback.autoResume", true)

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5001/scene")
	viper.SetDefault("stream.token", "")

	viper.SetDefault("archive.type", "memory")
	viper.SetDefault("archive.memory.outputDir", "./catalogs")
	viper.SetDefault("archive.memory.compressOutput", true)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "quakescene")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "quakescene-metrics")

	viper.SetDefault("graylog.enabled", true)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "quakescene")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("quakescene.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetArchiveConfig returns the typed archive section.
func GetArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Type: viper.GetString("archive.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("archive.memory.outputDir"),
			CompressOutput: viper.GetBool("archive.memory.compressOutput"),
		},
	}
}

// GetFeedConfig returns the typed feed section.
func GetFeedConfig() FeedConfig {
	return FeedConfig{
		BaseURL:     viper.GetString("feed.baseUrl"),
		Contributor: viper.GetString("feed.contributor"),
		CacheTTL:    viper.GetDuration("feed.cacheTtl"),
	}
}

// GetPlaybackConfig returns the typed playback section.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		DaysPerSecond: viper.GetFloat64("playback.daysPerSecond"),
		FrameRateHz:   viper.GetInt("playback.frameRateHz"),
		ColorRamp:     viper.GetString("playback.colorRamp"),
		AutoResume:    viper.GetBool("playback.autoResume"),
	}
}

// GetStreamConfig returns the typed stream section.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Token:   viper.GetString("stream.token"),
	}
}

// GetOTelConfig returns the typed otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
