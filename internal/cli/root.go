// Package cli implements the sessionctl commands. Every command opens the
// persisted session, bootstraps it and then acts like a view of the web
// client: the same guard decides whether it may render.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errPending = errors.New("account pending approval")

type root struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
}

// NewRootCommand builds the sessionctl command tree
func NewRootCommand() *cobra.Command {
	r := &root{v: newViper()}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Manage a client session against the auth API",
		Long: `sessionctl keeps one signed in session per installation.

The session token is persisted in the configured store and the identity is
resolved against the API on every run. Commands that show protected views
are gated by the same route guard the local web UI uses.

Examples:
  sessionctl signin --email ada@example.com
  sessionctl whoami
  sessionctl admin users list
  sessionctl serve --listen 127.0.0.1:3000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(r.v, r.cfgFile)
			if err != nil {
				return err
			}
			r.cfg = cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&r.cfgFile, "config", "", "config file (default $HOME/.config/sessionctl/config.yaml)")
	flags.String("api-url", "", "auth API base URL")
	flags.String("store", "", "token store: file, sql or memory")
	flags.String("store-path", "", "session file or SQLite DSN")
	flags.Duration("timeout", 0, "HTTP timeout")
	flags.BoolP("verbose", "v", false, "log debug output to stderr")
	flags.String("audit-log", "", "append session activity as JSON lines to this file")

	for key, flag := range map[string]string{
		"api_url":    "api-url",
		"store":      "store",
		"store_path": "store-path",
		"timeout":    "timeout",
		"verbose":    "verbose",
		"audit_log":  "audit-log",
	} {
		_ = r.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(
		r.signInCommand(),
		r.signUpCommand(),
		r.signOutCommand(),
		r.whoamiCommand(),
		r.openCommand(),
		r.profileCommand(),
		r.passwordCommand(),
		r.pendingCommand(),
		r.adminCommand(),
		r.serveCommand(),
		r.mockBackendCommand(),
	)

	return cmd
}

// run opens the session, bootstraps it and hands it to fn
func (r *root) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, r.cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.sm.Bootstrap(ctx)
	a.logger.Debug("bootstrapped: %s", snap)

	return fn(ctx, a)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}
