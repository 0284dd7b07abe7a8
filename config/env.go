package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/wippyai/ydb-bridge/errors"
)

var signalNames = map[string]os.Signal{
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGTERM": syscall.SIGTERM,
}

// IgnoredSignals returns the signals opted out of guarding.
func (c Config) IgnoredSignals() []os.Signal {
	var out []os.Signal
	for _, s := range c.Signals.Ignore {
		if sig, ok := signalNames[strings.ToUpper(s)]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// Environment returns the variables the engine reads its setup from. Unset
// settings produce no entry.
func (c Config) Environment() map[string]string {
	env := make(map[string]string)
	if c.GlobalDirectory != "" {
		env["ydb_gbldir"] = c.GlobalDirectory
	}
	if c.Routines != "" {
		env["ydb_routines"] = c.Routines
	}
	if c.CallInTable != "" {
		env["ydb_ci"] = c.CallInTable
	}
	if c.AutoRelink {
		env["ydb_link"] = "RECURSIVE"
	}
	for _, r := range c.Remotes {
		addr := r.Address
		if r.Port > 0 {
			addr += ":" + strconv.Itoa(r.Port)
		}
		env["GTCM_"+strings.ToUpper(r.Node)] = addr
	}
	return env
}

// Apply exports Environment into the process. Variables are set in name order
// and the first failure stops the export.
func (c Config) Apply() error {
	env := c.Environment()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := os.Setenv(k, env[k]); err != nil {
			return errors.Syscall("setenv "+k, err)
		}
	}
	return nil
}
