package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ESP32_IP_ADDRESS", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8899, cfg.Web.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, float32(0.9), cfg.Gemini.Temperature)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, "./audio", cfg.Audio.Dir)
	assert.Equal(t, int64(20<<20), cfg.Audio.MaxBytes)
	assert.Equal(t, "jaxitaxi.db", cfg.DB.Path)
	assert.Equal(t, "./logs", cfg.ShowLog.Dir)
	assert.Equal(t, 5*time.Second, cfg.WLED.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.WLED.URL)
	assert.False(t, cfg.AuthEnabled())

	d := cfg.LightingDefaults()
	assert.Equal(t, 0.8, d.Intensity)
	assert.Equal(t, 128, d.Speed)
	assert.Equal(t, "#FFFFFF", d.PrimaryColor)
}

func TestLoad_FileOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("JT_KEY", "secret-key")
	t.Setenv("ESP32_IP_ADDRESS", "192.168.1.50")

	path := writeConfig(t, t.TempDir(), `
web:
  port: 9000
  username: admin
  password: hunter2
gemini:
  api_key: ${JT_KEY}
  timeout: 30s
wled:
  url: http://wled.local
  mqtt:
    broker: tcp://localhost:1883
    topic: wled/taxi
lighting:
  speed: 64
audio:
  dir: /music
  shuffle: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, "secret-key", cfg.Gemini.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "http://wled.local", cfg.WLED.URL)
	assert.Equal(t, 64, cfg.Lighting.Speed)
	assert.Equal(t, 128, cfg.Lighting.EffectIntensity)
	assert.Equal(t, "/music", cfg.Audio.Dir)
	assert.True(t, cfg.Audio.Shuffle)
	assert.True(t, cfg.Audio.Watch)

	m := cfg.MQTT()
	assert.Equal(t, "tcp://localhost:1883", m.Broker)
	assert.Equal(t, "wled/taxi", m.Topic)
	assert.Equal(t, "jaxitaxi", m.ClientID)
}

func TestLoad_EnvFallbacks(t *testing.T) {
	t.Setenv("ESP32_IP_ADDRESS", " 10.0.0.7 ")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", cfg.WLED.URL)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeConfig(t, dir, "web: [nope"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, dir, `
web:
  port: 70000
lighting:
  intensity: 3
  speed: 300
wled:
  mqtt:
    broker: tcp://localhost:1883
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web.port")
	assert.Contains(t, err.Error(), "lighting.intensity")
	assert.Contains(t, err.Error(), "lighting.speed")
	assert.Contains(t, err.Error(), "wled.mqtt.topic")
}

func TestHotConfig_Reload(t *testing.T) {
	t.Setenv("ESP32_IP_ADDRESS", "")
	dir := t.TempDir()
	path := writeConfig(t, dir, "wled:\n  url: http://a.local\n")

	hc, err := NewHotConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://a.local", hc.Get().WLED.URL)

	var calls atomic.Int32
	var gotOld, gotNew atomic.Value
	hc.OnReload(func(old, cur *Config) {
		calls.Add(1)
		gotOld.Store(old.WLED.URL)
		gotNew.Store(cur.WLED.URL)
	})

	writeConfig(t, dir, "wled:\n  url: http://b.local\n")
	require.NoError(t, hc.Reload())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "http://a.local", gotOld.Load())
	assert.Equal(t, "http://b.local", gotNew.Load())
	assert.Equal(t, "http://b.local", hc.Get().WLED.URL)

	writeConfig(t, dir, "web: [broken")
	assert.Error(t, hc.Reload())
	assert.Equal(t, "http://b.local", hc.Get().WLED.URL)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHotConfig_Watch(t *testing.T) {
	t.Setenv("ESP32_IP_ADDRESS", "")
	dir := t.TempDir()
	path := writeConfig(t, dir, "lighting:\n  speed: 10\n")

	hc, err := NewHotConfig(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hc.Watch(ctx)

	writeConfig(t, dir, "lighting:\n  speed: 20\n")
	assert.Eventually(t, func() bool {
		return hc.Get().Lighting.Speed == 20
	}, 5*time.Second, 50*time.Millisecond)
}
