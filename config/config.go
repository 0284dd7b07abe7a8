// Package config loads the settings a runtime is opened with.
//
// Files are YAML or TOML, chosen by extension:
//
//	engine: local
//	global_directory: /var/lib/ydb/g/yottadb.gld
//	routines: "/opt/app/o(/opt/app/r)"
//	mode: canonical
//	charset: utf-8
//	debug: off
//	workers: 4
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// Engine names.
const (
	EngineLocal   = "local"
	EngineYottaDB = "yottadb"
)

// Remote is a GT.CM server holding some of the database regions.
type Remote struct {
	Node    string `yaml:"node" toml:"node"`
	Address string `yaml:"address" toml:"address"`
	Port    int    `yaml:"port" toml:"port"`
}

// Signals selects which guarded signals are left to the host.
type Signals struct {
	Ignore []string `yaml:"ignore" toml:"ignore"`
}

type Config struct {
	Engine          string   `yaml:"engine" toml:"engine"`
	GlobalDirectory string   `yaml:"global_directory" toml:"global_directory"`
	Routines        string   `yaml:"routines" toml:"routines"`
	CallInTable     string   `yaml:"call_in_table" toml:"call_in_table"`
	AutoRelink      bool     `yaml:"auto_relink" toml:"auto_relink"`
	Mode            string   `yaml:"mode" toml:"mode"`
	Charset         string   `yaml:"charset" toml:"charset"`
	Debug           string   `yaml:"debug" toml:"debug"`
	ReservedPrefix  string   `yaml:"reserved_prefix" toml:"reserved_prefix"`
	ResultSize      int      `yaml:"result_size" toml:"result_size"`
	Workers         int      `yaml:"workers" toml:"workers"`
	Remotes         []Remote `yaml:"remotes" toml:"remotes"`
	Signals         Signals  `yaml:"signals" toml:"signals"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Engine:         EngineLocal,
		Mode:           ydbbridge.ModeCanonical.String(),
		Charset:        ydbbridge.CharsetUTF8.String(),
		Debug:          ydbbridge.DebugOff.String(),
		ReservedPrefix: transcoder.DefaultReservedPrefix,
		ResultSize:     ydbbridge.DefaultResultSize,
		Workers:        4,
	}
}

// Load reads path over the defaults. The extension picks the format: .toml,
// or .yaml/.yml/none for YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindSyscall, err, "read "+path)
	}
	if err := Parse(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes data in the format named by ext into cfg.
func Parse(data []byte, ext string, cfg *Config) error {
	var err error
	switch strings.ToLower(ext) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, cfg)
	default:
		return errors.New(errors.PhaseConfig, errors.KindUnsupported).
			Detail("unknown config format %q", ext).
			Build()
	}
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config")
	}
	return nil
}

// Validate checks every enumerated setting.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineLocal, EngineYottaDB:
	default:
		return invalid("engine", "unknown engine %q", c.Engine)
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	if c.ResultSize < 0 {
		return invalid("result_size", "must not be negative")
	}
	if c.Workers < 0 {
		return invalid("workers", "must not be negative")
	}
	for i, r := range c.Remotes {
		if r.Node == "" || r.Address == "" {
			return invalid("remotes", "remote %d needs node and address", i)
		}
		if r.Port < 0 || r.Port > 65535 {
			return invalid("remotes", "remote %s has invalid port %d", r.Node, r.Port)
		}
	}
	for _, s := range c.Signals.Ignore {
		if _, ok := signalNames[strings.ToUpper(s)]; !ok {
			return invalid("signals.ignore", "unknown signal %q", s)
		}
	}
	return nil
}

// Settings is the parsed form of the enumerated fields.
type Settings struct {
	Mode    ydbbridge.Mode
	Charset ydbbridge.Charset
	Debug   ydbbridge.DebugLevel
}

func (c Config) Settings() (Settings, error) {
	var s Settings
	var err error
	if s.Mode, err = ydbbridge.ParseMode(c.Mode); err != nil {
		return s, invalid("mode", "%v", err)
	}
	if s.Charset, err = ydbbridge.ParseCharset(c.Charset); err != nil {
		return s, invalid("charset", "%v", err)
	}
	if s.Debug, err = ydbbridge.ParseDebugLevel(c.Debug); err != nil {
		return s, invalid("debug", "%v", err)
	}
	return s, nil
}

func invalid(field, format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(field).
		Detail(format, args...).
		Build()
}
