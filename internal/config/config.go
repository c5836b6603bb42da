// Package config resolves the obs-multicam settings from a .env file, an
// optional YAML file and the environment. Command-line flags are applied on
// top by the caller.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	multicam "github.com/stepherg/obs-multicam"
)

const (
	envConfig       = "OBS_MULTICAM_CONFIG"
	envHost         = "OBS_HOST"
	envPort         = "OBS_PORT"
	envPassword     = "OBS_PASSWORD"
	envListen       = "OBS_MULTICAM_LISTEN"
	envOverlayScene = "OBS_MULTICAM_OVERLAY_SCENE"
	envSettle       = "OBS_MULTICAM_SETTLE"

	defaultHost   = "localhost"
	defaultPort   = "4455"
	defaultListen = ":8090"
)

type Config struct {
	Host         string
	Port         string
	Password     string
	Listen       string
	OverlayScene string
	Settle       time.Duration
}

// fileConfig mirrors config.yaml.
type fileConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	Listen       string `yaml:"listen"`
	OverlayScene string `yaml:"overlay_scene"`
	Settle       string `yaml:"settle"`
}

func init() {
	_ = godotenv.Load()
}

// Load resolves settings with precedence env > file > default. path names
// the YAML file; when empty, $OBS_MULTICAM_CONFIG is used, then
// ~/.config/obs-multicam/config.yaml. Only an explicitly named file must
// exist.
func Load(path string) (Config, error) {
	explicit := firstNonEmpty(path, os.Getenv(envConfig))
	fc, err := loadFileConfig(firstNonEmpty(explicit, defaultPath()), explicit != "")
	if err != nil {
		return Config{}, err
	}

	filePort := ""
	if fc.Port != 0 {
		filePort = strconv.Itoa(fc.Port)
	}
	def := multicam.DefaultOptions()
	cfg := Config{
		Host:         firstNonEmpty(os.Getenv(envHost), fc.Host, defaultHost),
		Port:         firstNonEmpty(os.Getenv(envPort), filePort, defaultPort),
		Password:     firstNonEmpty(os.Getenv(envPassword), fc.Password),
		Listen:       firstNonEmpty(os.Getenv(envListen), fc.Listen, defaultListen),
		OverlayScene: firstNonEmpty(os.Getenv(envOverlayScene), fc.OverlayScene, def.OverlayScene),
		Settle:       def.Sync.SettleWindow,
	}
	if raw := firstNonEmpty(os.Getenv(envSettle), fc.Settle); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("settle %q: %w", raw, multicam.ErrInvalidParameter)
		}
		cfg.Settle = d
	}
	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return Config{}, fmt.Errorf("port %q: %w", cfg.Port, multicam.ErrInvalidParameter)
	}
	return cfg, nil
}

// Address is host:port of the obs-websocket server.
func (c Config) Address() string { return net.JoinHostPort(c.Host, c.Port) }

// Options converts the settings into controller options.
func (c Config) Options() multicam.Options {
	opts := multicam.DefaultOptions()
	opts.Address = c.Address()
	opts.Auth = multicam.StaticAuth{Value: c.Password}
	opts.OverlayScene = c.OverlayScene
	opts.Sync.SettleWindow = c.Settle
	return opts
}

func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "obs-multicam", "config.yaml")
}

func loadFileConfig(path string, required bool) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FirstNonEmpty lets callers layer flag values over a loaded Config.
func FirstNonEmpty(values ...string) string { return firstNonEmpty(values...) }
