package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
)

const yamlConfig = `
engine: yottadb
global_directory: /data/g/yottadb.gld
routines: "/app/o(/app/r)"
auto_relink: true
mode: string
charset: m
debug: medium
workers: 8
remotes:
  - node: east
    address: 10.0.0.5
    port: 6789
signals:
  ignore: [sigint]
`

const tomlConfig = `
engine = "local"
global_directory = "globals.db"
mode = "canonical"
debug = "low"

[[remotes]]
node = "west"
address = "db.example"
`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
		want func(t *testing.T, c Config)
	}{
		{"yaml", ".yaml", yamlConfig, func(t *testing.T, c Config) {
			if c.Engine != EngineYottaDB || c.Workers != 8 || !c.AutoRelink {
				t.Errorf("parsed %+v", c)
			}
			s, err := c.Settings()
			if err != nil {
				t.Fatal(err)
			}
			if s.Mode != ydbbridge.ModeString || s.Charset != ydbbridge.CharsetLatin1 || s.Debug != ydbbridge.DebugMedium {
				t.Errorf("settings = %+v", s)
			}
		}},
		{"toml", ".toml", tomlConfig, func(t *testing.T, c Config) {
			if c.GlobalDirectory != "globals.db" || len(c.Remotes) != 1 || c.Remotes[0].Node != "west" {
				t.Errorf("parsed %+v", c)
			}
			// unset fields keep their defaults
			if c.Workers != 4 || c.Charset != "utf-8" {
				t.Errorf("defaults lost: workers=%d charset=%q", c.Workers, c.Charset)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			if err := Parse([]byte(tt.data), tt.ext, &c); err != nil {
				t.Fatal(err)
			}
			if err := c.Validate(); err != nil {
				t.Fatal(err)
			}
			tt.want(t, c)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	c := Default()
	err := Parse([]byte("x"), ".ini", &c)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindUnsupported}) {
		t.Errorf("unknown extension: %v", err)
	}
	err = Parse([]byte("engine: [unclosed"), ".yml", &c)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}) {
		t.Errorf("bad yaml: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"engine", func(c *Config) { c.Engine = "gtm" }, "engine"},
		{"mode", func(c *Config) { c.Mode = "loose" }, "mode"},
		{"charset", func(c *Config) { c.Charset = "ebcdic" }, "charset"},
		{"debug", func(c *Config) { c.Debug = "verbose" }, "debug"},
		{"workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"result size", func(c *Config) { c.ResultSize = -1 }, "result_size"},
		{"remote without address", func(c *Config) { c.Remotes = []Remote{{Node: "a"}} }, "remotes"},
		{"remote port", func(c *Config) { c.Remotes = []Remote{{Node: "a", Address: "h", Port: 70000}} }, "remotes"},
		{"signal", func(c *Config) { c.Signals.Ignore = []string{"SIGHUP"} }, "signals.ignore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			var e *errors.Error
			if !errors.As(err, &e) {
				t.Fatalf("Validate() = %v", err)
			}
			if len(e.Path) != 1 || e.Path[0] != tt.field {
				t.Errorf("path = %v, want %s", e.Path, tt.field)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestEnvironment(t *testing.T) {
	c := Default()
	if err := Parse([]byte(yamlConfig), ".yaml", &c); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"ydb_gbldir":   "/data/g/yottadb.gld",
		"ydb_routines": "/app/o(/app/r)",
		"ydb_link":     "RECURSIVE",
		"GTCM_EAST":    "10.0.0.5:6789",
	}
	got := c.Environment()
	if len(got) != len(want) {
		t.Errorf("Environment() = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if len(Default().Environment()) != 0 {
		t.Error("defaults export variables")
	}
	if sigs := c.IgnoredSignals(); len(sigs) != 1 {
		t.Errorf("IgnoredSignals() = %v", sigs)
	}
}

func TestApply(t *testing.T) {
	t.Setenv("ydb_ci", "")
	c := Default()
	c.CallInTable = "/app/calltab.ci"
	if err := c.Apply(); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("ydb_ci"); got != "/app/calltab.ci" {
		t.Errorf("ydb_ci = %q", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ydb.toml")
	if err := os.WriteFile(path, []byte(tomlConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Debug != "low" {
		t.Errorf("debug = %q", c.Debug)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ydb.yaml")
	if err := os.WriteFile(path, []byte("debug: off\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c Config, err error) {
			if err == nil {
				got <- c
			}
		})
	}()

	// the watcher may not be registered yet; keep writing until a reload lands
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-got:
			if !strings.EqualFold(c.Debug, "high") {
				t.Errorf("reloaded debug = %q", c.Debug)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatal(err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("debug: high\n"), 0o600); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
