package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jaxi-taxi/jaxitaxi/internal/analysis"
	"github.com/jaxi-taxi/jaxitaxi/internal/config"
	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
	"github.com/jaxi-taxi/jaxitaxi/internal/player"
	"github.com/jaxi-taxi/jaxitaxi/internal/playlist"
	"github.com/jaxi-taxi/jaxitaxi/internal/showlog"
	"github.com/jaxi-taxi/jaxitaxi/internal/store"
	"github.com/jaxi-taxi/jaxitaxi/internal/web"
	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  jaxitaxi run [flags]     Start the dashboard and light show")
	fmt.Println("  jaxitaxi effects         List the WLED effect table")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		opts, err := parseRunFlags(os.Args[2:])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if err := run(opts); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
	case "effects":
		for _, e := range wled.Effects() {
			fmt.Printf("%3d  %s\n", e.ID, e.Name)
		}
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

type runOptions struct {
	configPath string
	port       int
	logLevel   string
	audioDir   string
}

func parseRunFlags(args []string) (runOptions, error) {
	var o runOptions
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "config.yaml", "path to the YAML config file")
	fs.IntVarP(&o.port, "port", "p", 0, "dashboard port (overrides web.port)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	fs.StringVar(&o.audioDir, "audio-dir", "", "directory of audio files (overrides audio.dir)")
	if err := fs.Parse(args); err != nil {
		return runOptions{}, err
	}
	return o, nil
}

// apply writes command-line overrides into cfg.
func (o runOptions) apply(cfg *config.Config) {
	if o.port > 0 {
		cfg.Web.Port = o.port
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.audioDir != "" {
		cfg.Audio.Dir = o.audioDir
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	level.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func run(opts runOptions) error {
	hc, err := config.NewHotConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := hc.Get()
	opts.apply(cfg)

	level := new(slog.LevelVar)
	logger := setupLogger(cfg.Log, level)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	st, err := store.NewStore(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := os.MkdirAll(cfg.Audio.Dir, 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	pl, err := playlist.New(cfg.Audio.Dir, cfg.Audio.Shuffle, cfg.Audio.MaxBytes)
	if err != nil {
		return fmt.Errorf("load playlist: %w", err)
	}

	var showLog *showlog.Logger
	if cfg.ShowLog.Dir != "" {
		showLog, err = showlog.NewLogger(cfg.ShowLog.Dir)
		if err != nil {
			return fmt.Errorf("open show log: %w", err)
		}
		defer showLog.Close()
		slog.Info("📝 show log", "path", showLog.Path())
	}

	translator := lighting.NewTranslator(cfg.LightingDefaults(), logger)

	client := wled.NewClient(cfg.WLED.URL, cfg.WLED.Timeout)
	if client.Enabled() {
		slog.Info("💡 wled device", "url", client.BaseURL())
	} else {
		slog.Warn("wled url not configured (wled.url / ESP32_IP_ADDRESS); lighting is preview only")
	}

	mqttPub := connectMQTT(ctx, cfg, logger)
	if mqttPub != nil {
		defer mqttPub.Close()
	}

	p := player.New(player.Deps{
		Playlist:   pl,
		Analyzer:   newAnalyzer(ctx, cfg.Gemini),
		Translator: translator,
		Sender:     buildSender(client, mqttPub),
		Store:      st,
		ShowLog:    showLog,
		Logger:     logger,
	})
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	defer p.Stop()

	if cfg.Audio.Watch {
		if err := pl.Watch(ctx, p.PlaylistChanged); err != nil {
			slog.Warn("audio dir watch disabled", "err", err)
		}
	}

	srv := web.NewServer(web.Options{
		Port:     cfg.Web.Port,
		Username: cfg.Web.Username,
		Password: cfg.Web.Password,
		Player:   p,
		Playlist: pl,
		Store:    st,
		Device:   client,
		LogDir:   cfg.ShowLog.Dir,
	})

	hc.OnReload(func(old, cur *config.Config) {
		opts.apply(cur)
		level.Set(parseLevel(cur.Log.Level))
		translator.SetDefaults(cur.LightingDefaults())

		if old.WLED.URL != cur.WLED.URL || old.WLED.Timeout != cur.WLED.Timeout {
			client = wled.NewClient(cur.WLED.URL, cur.WLED.Timeout)
			srv.SetDevice(client)
			p.SetSender(buildSender(client, mqttPub))
			slog.Info("💡 wled device updated", "url", client.BaseURL())
		}
		if old.Gemini != cur.Gemini {
			p.SetAnalyzer(newAnalyzer(ctx, cur.Gemini))
			slog.Info("🎛️ analyzer updated", "model", cur.Gemini.Model)
		}
		for _, section := range restartRequired(old, cur) {
			slog.Warn(section+" settings changed; restart to apply")
		}
	})
	hc.Watch(ctx)

	return srv.Start(ctx)
}

// restartRequired lists the config sections that changed but are only read
// at startup.
func restartRequired(old, cur *config.Config) []string {
	var out []string
	if old.Web != cur.Web {
		out = append(out, "web")
	}
	if old.WLED.MQTT != cur.WLED.MQTT {
		out = append(out, "wled.mqtt")
	}
	if old.Audio != cur.Audio {
		out = append(out, "audio")
	}
	if old.DB != cur.DB {
		out = append(out, "db")
	}
	if old.ShowLog != cur.ShowLog {
		out = append(out, "showlog")
	}
	if old.Log.Format != cur.Log.Format {
		out = append(out, "log.format")
	}
	return out
}

// newAnalyzer returns nil when Gemini is not usable; the player then falls
// back to local lighting for every track.
func newAnalyzer(ctx context.Context, cfg config.GeminiConfig) analysis.Analyzer {
	if cfg.APIKey == "" {
		slog.Warn("gemini api key not configured (gemini.api_key / GEMINI_API_KEY); using fallback lighting")
		return nil
	}
	opts := []analysis.Option{
		analysis.WithTemperature(cfg.Temperature),
		analysis.WithTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, analysis.WithBaseURL(cfg.BaseURL))
	}
	g, err := analysis.NewGemini(ctx, cfg.APIKey, cfg.Model, opts...)
	if err != nil {
		slog.Error("init gemini failed; using fallback lighting", "err", err)
		return nil
	}
	slog.Info("🎛️ gemini analyzer ready", "model", g.Model())
	return g
}

// connectMQTT returns nil when no broker is configured. A broker that is not
// reachable yet is kept; the client keeps retrying in the background.
func connectMQTT(ctx context.Context, cfg *config.Config, logger *slog.Logger) *wled.MQTTPublisher {
	if cfg.WLED.MQTT.Broker == "" {
		return nil
	}
	pub := wled.NewMQTTPublisher(cfg.MQTT(), logger)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pub.Connect(connectCtx); err != nil {
		slog.Warn("mqtt broker not reachable yet", "broker", cfg.WLED.MQTT.Broker, "err", err)
	}
	slog.Info("📡 wled mqtt", "topic", pub.Topic())
	return pub
}

// buildSender combines the configured transports. nil means no device.
func buildSender(client *wled.Client, mqttPub *wled.MQTTPublisher) wled.Sender {
	var senders wled.Fanout
	if client.Enabled() {
		senders = append(senders, client)
	}
	if mqttPub != nil {
		senders = append(senders, mqttPub)
	}
	switch len(senders) {
	case 0:
		return nil
	case 1:
		return senders[0]
	default:
		return senders
	}
}
