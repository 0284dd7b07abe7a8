package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wippyai/ydb-bridge/runtime"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name> [subscript...]",
		Short: "Print the value of a node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				env, err := s.Get(cmd.Context(), runtime.Options{Ref: parseRef(args[0], args[1:])})
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), env, env.Data)
			})
		},
	}
}

func newSetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [subscript...] <value>",
		Short: "Store a value",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			last := len(args) - 1
			o := runtime.Options{
				Ref:  parseRef(args[0], args[1:last]),
				Data: parseValue(args[last]),
			}
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				env, err := s.Set(cmd.Context(), o)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), env, env.Data)
			})
		},
	}
}

func newKillCommand(opts *rootOptions) *cobra.Command {
	var nodeOnly bool
	cmd := &cobra.Command{
		Use:   "kill <name> [subscript...]",
		Short: "Remove a node and its descendants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := runtime.Options{Ref: parseRef(args[0], args[1:]), NodeOnly: nodeOnly}
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				env, err := s.Kill(cmd.Context(), o)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), env, nil)
			})
		},
	}
	cmd.Flags().BoolVar(&nodeOnly, "node-only", false, "keep descendants")
	return cmd
}

func newOrderCommand(opts *rootOptions) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "order <name> [subscript...]",
		Short: "Print the next sibling subscript",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := runtime.Options{Ref: parseRef(args[0], args[1:])}
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				step := s.Order
				if reverse {
					step = s.Previous
				}
				env, err := step(cmd.Context(), o)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), env, env.Result)
			})
		},
	}
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "walk backwards")
	return cmd
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "query <name> [subscript...]",
		Short: "Print the next node in depth-first order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := runtime.Options{Ref: parseRef(args[0], args[1:])}
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				step := s.NextNode
				if reverse {
					step = s.PreviousNode
				}
				env, err := step(cmd.Context(), o)
				if err != nil {
					return err
				}
				if env.Defined != true {
					return opts.print(cmd.OutOrStdout(), env, "")
				}
				return opts.print(cmd.OutOrStdout(), env, formatNode(o.Ref, env.Subscripts))
			})
		},
	}
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "walk backwards")
	return cmd
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <name> [subscript...]",
		Short: "Print every node under a variable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := parseRef(args[0], args[1:])
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				return dump(cmd, s, ref)
			})
		},
	}
}

func dump(cmd *cobra.Command, s *runtime.Session, ref runtime.Ref) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	env, err := s.Get(ctx, runtime.Options{Ref: ref})
	if err != nil {
		return err
	}
	if env.Defined == true {
		fmt.Fprintf(out, "%s=%s\n", formatNode(ref, ref.Subscripts), formatValue(env.Data))
	}

	cur := ref
	for {
		env, err := s.NextNode(ctx, runtime.Options{Ref: cur})
		if err != nil {
			return err
		}
		if !env.OK {
			return fmt.Errorf("%s: %s", formatNode(cur, cur.Subscripts), env.ErrorMessage)
		}
		if env.Defined != true || !hasPrefix(env.Subscripts, ref.Subscripts) {
			return nil
		}
		fmt.Fprintf(out, "%s=%s\n", formatNode(ref, env.Subscripts), formatValue(env.Data))
		cur.Subscripts = env.Subscripts
	}
}

func newCallCommand(opts *rootOptions) *cobra.Command {
	var procedure, relink bool
	cmd := &cobra.Command{
		Use:   "call <entryref> [arg...]",
		Short: "Run an M extrinsic function or procedure",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := runtime.Options{Arguments: parseValues(args[1:])}
			if cmd.Flags().Changed("relink") {
				o.AutoRelink = &relink
			}
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				var (
					env *runtime.Envelope
					err error
				)
				if procedure {
					o.Procedure = args[0]
					env, err = s.Procedure(cmd.Context(), o)
				} else {
					o.Function = args[0]
					env, err = s.Function(cmd.Context(), o)
				}
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), env, env.Result)
			})
		},
	}
	cmd.Flags().BoolVarP(&procedure, "procedure", "p", false, "call as a procedure (no return value)")
	cmd.Flags().BoolVar(&relink, "relink", false, "relink routines before the call")
	return cmd
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine and bridge versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(s *runtime.Session) error {
				v, err := s.Version(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
				return err
			})
		},
	}
}

// print writes env as JSON, or value as text. A failed call becomes an error
// in text mode so that the exit status reflects it.
func (o *rootOptions) print(w io.Writer, env *runtime.Envelope, value any) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	if !env.OK {
		return fmt.Errorf("%d: %s", env.ErrorCode, env.ErrorMessage)
	}
	if value == nil {
		return nil
	}
	_, err := fmt.Fprintln(w, value)
	return err
}
