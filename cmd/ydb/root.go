package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/wippyai/ydb-bridge/config"
	"github.com/wippyai/ydb-bridge/runtime"
)

type rootOptions struct {
	Config string
	Format string
	Engine string
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ydb",
		Short:         "Read and write an M database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (yaml or toml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", "", "engine override (local|yottadb)")

	cmd.AddCommand(
		newGetCommand(opts),
		newSetCommand(opts),
		newKillCommand(opts),
		newOrderCommand(opts),
		newQueryCommand(opts),
		newDumpCommand(opts),
		newCallCommand(opts),
		newVersionCommand(opts),
		newShellCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Load(o.Config); err != nil {
			return cfg, err
		}
	}
	if o.Engine != "" {
		cfg.Engine = o.Engine
	}
	return cfg, cfg.Validate()
}

// withSession opens a runtime for the length of fn.
func (o *rootOptions) withSession(ctx context.Context, fn func(*runtime.Session) error) (err error) {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	rt, err := runtime.New(cfg, nil)
	if err != nil {
		return err
	}
	if err := rt.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(ctx); err == nil {
			err = cerr
		}
	}()
	return fn(rt.Session())
}
