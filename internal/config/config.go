package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

type Config struct {
	Web      WebConfig      `yaml:"web"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	WLED     WLEDConfig     `yaml:"wled"`
	Lighting LightingConfig `yaml:"lighting"`
	Audio    AudioConfig    `yaml:"audio"`
	DB       DBConfig       `yaml:"db"`
	ShowLog  ShowLogConfig  `yaml:"showlog"`
	Log      LogConfig      `yaml:"log"`
}

type WebConfig struct {
	Port     int    `yaml:"port"`
	Username string `yaml:"username"` // login is enabled when both are set
	Password string `yaml:"password"`
}

type GeminiConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	BaseURL     string        `yaml:"base_url"` // optional API endpoint override
}

type WLEDConfig struct {
	URL     string        `yaml:"url"` // empty disables the HTTP device call
	Timeout time.Duration `yaml:"timeout"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883; empty disables
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"` // WLED device topic, e.g. wled/jaxi
}

type LightingConfig struct {
	Intensity       float64 `yaml:"intensity"`
	Speed           int     `yaml:"speed"`
	EffectIntensity int     `yaml:"effect_intensity"`
	PrimaryColor    string  `yaml:"primary_color"`
	SecondaryColor  string  `yaml:"secondary_color"`
}

type AudioConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	Shuffle  bool   `yaml:"shuffle"`
	Watch    bool   `yaml:"watch"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type ShowLogConfig struct {
	Dir string `yaml:"dir"` // empty disables the CSV log
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := lighting.DefaultDefaults()
	return &Config{
		Web: WebConfig{
			Port: 8899,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.9,
			Timeout:     60 * time.Second,
		},
		WLED: WLEDConfig{
			Timeout: 5 * time.Second,
			MQTT: MQTTConfig{
				ClientID: "jaxitaxi",
			},
		},
		Lighting: LightingConfig{
			Intensity:       d.Intensity,
			Speed:           d.Speed,
			EffectIntensity: d.EffectIntensity,
			PrimaryColor:    d.PrimaryColor,
			SecondaryColor:  d.SecondaryColor,
		},
		Audio: AudioConfig{
			Dir:      "./audio",
			MaxBytes: 20 << 20,
			Watch:    true,
		},
		DB: DBConfig{
			Path: "jaxitaxi.db",
		},
		ShowLog: ShowLogConfig{
			Dir: "./logs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, expands ${VAR} references and applies defaults and env
// fallbacks. An empty path, or a file that does not exist, yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.WLED.URL == "" {
		c.WLED.URL = strings.TrimSpace(os.Getenv("ESP32_IP_ADDRESS"))
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port %d out of range", c.Web.Port))
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		errs = append(errs, fmt.Errorf("gemini.temperature %v out of range [0,2]", c.Gemini.Temperature))
	}
	if c.Lighting.Intensity < 0 || c.Lighting.Intensity > 1 {
		errs = append(errs, fmt.Errorf("lighting.intensity %v out of range [0,1]", c.Lighting.Intensity))
	}
	for name, v := range map[string]int{"lighting.speed": c.Lighting.Speed, "lighting.effect_intensity": c.Lighting.EffectIntensity} {
		if v < 0 || v > 255 {
			errs = append(errs, fmt.Errorf("%s %d out of range [0,255]", name, v))
		}
	}
	if c.Audio.Dir == "" {
		errs = append(errs, errors.New("audio.dir is required"))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if c.WLED.MQTT.Broker != "" && c.WLED.MQTT.Topic == "" {
		errs = append(errs, errors.New("wled.mqtt.topic is required when a broker is set"))
	}
	return errors.Join(errs...)
}

// AuthEnabled reports whether dashboard login is configured.
func (c *Config) AuthEnabled() bool {
	return c.Web.Username != "" && c.Web.Password != ""
}

// LightingDefaults converts the lighting section for the translator.
func (c *Config) LightingDefaults() lighting.Defaults {
	return lighting.Defaults{
		Intensity:       c.Lighting.Intensity,
		Speed:           c.Lighting.Speed,
		EffectIntensity: c.Lighting.EffectIntensity,
		PrimaryColor:    c.Lighting.PrimaryColor,
		SecondaryColor:  c.Lighting.SecondaryColor,
	}
}

// MQTT converts the MQTT section for the publisher.
func (c *Config) MQTT() wled.MQTTConfig {
	return wled.MQTTConfig{
		Broker:   c.WLED.MQTT.Broker,
		ClientID: c.WLED.MQTT.ClientID,
		Username: c.WLED.MQTT.Username,
		Password: c.WLED.MQTT.Password,
		Topic:    c.WLED.MQTT.Topic,
	}
}
