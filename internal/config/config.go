package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	API       APIConfig       `json:"api" yaml:"api"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Dispatch  DispatchConfig  `json:"dispatch" yaml:"dispatch"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
}

type APIConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Addr             string `json:"addr" yaml:"addr"`
	DefaultListLimit int    `json:"default_list_limit" yaml:"default_list_limit"`
	MaxListLimit     int    `json:"max_list_limit" yaml:"max_list_limit"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type DetectionConfig struct {
	// A failed count above RedFailedCount classifies red; above
	// YellowFailedCount, yellow.
	RedFailedCount    int `json:"red_failed_count" yaml:"red_failed_count"`
	YellowFailedCount int `json:"yellow_failed_count" yaml:"yellow_failed_count"`

	// FailureWindow bounds the rolling failure count derived at the
	// ingestion layer when an event does not carry one.
	FailureWindow time.Duration `json:"failure_window" yaml:"failure_window"`

	Scores             ScoresConfig `json:"scores" yaml:"scores"`
	DefaultNormalHours string       `json:"default_normal_hours" yaml:"default_normal_hours"`
}

type ScoresConfig struct {
	Green  float64 `json:"green" yaml:"green"`
	Yellow float64 `json:"yellow" yaml:"yellow"`
	Red    float64 `json:"red" yaml:"red"`
}

type DispatchConfig struct {
	QueueSize        int `json:"queue_size" yaml:"queue_size"`
	SubscriberBuffer int `json:"subscriber_buffer" yaml:"subscriber_buffer"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		API: APIConfig{
			Enabled:          true,
			Addr:             ":8080",
			DefaultListLimit: 50,
			MaxListLimit:     100,
		},
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			Kafka:         KafkaConfig{Enabled: false},
		},
		Detection: DetectionConfig{
			RedFailedCount:     7,
			YellowFailedCount:  3,
			FailureWindow:      15 * time.Minute,
			Scores:             ScoresConfig{Green: 0.2, Yellow: 0.6, Red: 0.9},
			DefaultNormalHours: "9-18",
		},
		Dispatch: DispatchConfig{QueueSize: 256, SubscriberBuffer: 64},
		Storage:  StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:loginguard.db?_pragma=busy_timeout(5000)"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.API.DefaultListLimit <= 0 {
		cfg.API.DefaultListLimit = 50
	}
	if cfg.API.MaxListLimit <= 0 {
		cfg.API.MaxListLimit = 100
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Detection.RedFailedCount <= 0 {
		cfg.Detection.RedFailedCount = 7
	}
	if cfg.Detection.YellowFailedCount <= 0 {
		cfg.Detection.YellowFailedCount = 3
	}
	if cfg.Detection.FailureWindow <= 0 {
		cfg.Detection.FailureWindow = 15 * time.Minute
	}
	if cfg.Detection.Scores == (ScoresConfig{}) {
		cfg.Detection.Scores = ScoresConfig{Green: 0.2, Yellow: 0.6, Red: 0.9}
	}
	if cfg.Detection.DefaultNormalHours == "" {
		cfg.Detection.DefaultNormalHours = "9-18"
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = 256
	}
	if cfg.Dispatch.SubscriberBuffer <= 0 {
		cfg.Dispatch.SubscriberBuffer = 64
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.API.DefaultListLimit > cfg.API.MaxListLimit {
		return fmt.Errorf("api.default_list_limit %d exceeds api.max_list_limit %d",
			cfg.API.DefaultListLimit, cfg.API.MaxListLimit)
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Detection.YellowFailedCount >= cfg.Detection.RedFailedCount {
		return fmt.Errorf("detection.yellow_failed_count %d must be below detection.red_failed_count %d",
			cfg.Detection.YellowFailedCount, cfg.Detection.RedFailedCount)
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	if info, err := os.Stat(path); err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps a config that is not backed by a file; Reload and
// Watch become no-ops.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyDefaults(cfg)
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if m.path == "" {
		return
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
