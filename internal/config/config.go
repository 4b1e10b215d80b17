package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM       LLMConfig
	Server    ServerConfig
	Assistant AssistantConfig
	Store     StoreConfig
	Auth      AuthConfig
	Capture   CaptureConfig
	Playback  PlaybackConfig
	Timeout   TimeoutConfig
	Log       LogConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	// Whisper-compatible transcription model and TTS voice.
	TranscribeModel string `mapstructure:"transcribe_model"`
	Voice           string `mapstructure:"voice"`
}

// ServerConfig holds the assistant backend server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	// BaseURL is where the chat client reaches the backend.
	BaseURL string `mapstructure:"base_url"`
}

// AssistantConfig holds the assistant persona configuration
type AssistantConfig struct {
	AssistantName string `mapstructure:"assistant_name"`
	CompanionName string `mapstructure:"companion_name"`
	// TrailCutoff caps how many previous interactions feed the prompt.
	TrailCutoff int `mapstructure:"trail_cutoff"`
}

// StoreConfig holds the conversation store configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds the account backend configuration
type AuthConfig struct {
	BaseURL string `mapstructure:"base_url"`
	AnonKey string `mapstructure:"anon_key"`
}

// CaptureConfig holds the microphone recorder configuration
type CaptureConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	MIME    string   `mapstructure:"mime"`
}

// PlaybackConfig holds the reply audio player configuration. Spoken
// replies are requested whenever a player command is configured, unless
// enabled is set to false explicitly.
type PlaybackConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Enabled *bool    `mapstructure:"enabled"`
}

// On reports whether spoken replies should be requested at startup.
func (p PlaybackConfig) On() bool {
	if p.Command == "" {
		return false
	}
	return p.Enabled == nil || *p.Enabled
}

// TimeoutConfig bounds the client's round-trips
type TimeoutConfig struct {
	Send time.Duration `mapstructure:"send"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml, or from the file named by
// the CONFIG_PATH environment variable when set.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("assistant.assistant_name", "Ada")
	viper.SetDefault("assistant.companion_name", "SoLo")
	viper.SetDefault("assistant.trail_cutoff", 30)
	viper.SetDefault("llm.transcribe_model", "whisper-1")
	viper.SetDefault("llm.voice", "alloy")
	viper.SetDefault("store.path", "conversations.db")
	viper.SetDefault("capture.mime", "audio/wav")
	viper.SetDefault("timeout.send", time.Minute)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
