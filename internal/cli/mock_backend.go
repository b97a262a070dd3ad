package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/authtest"
	"github.com/spf13/cobra"
)

func (r *root) mockBackendCommand() *cobra.Command {
	var listen, prefix, adminEmail, adminPassword string
	var signUpToken bool
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Run an in-memory auth API for local development",
		Long: `Run an in-memory auth API that behaves like the real backend: the first
account to sign up becomes admin, later ones wait for approval. Nothing is
persisted.`,
		Example: `  sessionctl mock-backend --admin-email admin@example.com --admin-password secret
  sessionctl --api-url http://127.0.0.1:8000/api/v1 signin --email admin@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd.ErrOrStderr(), true).GetLogger("authtest")

			opts := []authtest.Option{
				authtest.WithTokenTTL(ttl),
				authtest.WithLogger(log),
			}
			if signUpToken {
				opts = append(opts, authtest.WithSignUpToken())
			}
			backend := authtest.New(opts...)

			if adminEmail != "" {
				identity, err := backend.Seed("Admin", adminEmail, adminPassword, session.RoleAdmin)
				if err != nil {
					return err
				}
				log.Info("seeded admin %s (%s)", identity.Email, identity.ID)
			}

			prefix = "/" + strings.Trim(prefix, "/")
			mux := http.NewServeMux()
			mux.Handle(prefix+"/", http.StripPrefix(prefix, backend.Handler()))

			srv := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			log.Warn("mock auth API listening on http://%s%s", listen, prefix)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&prefix, "prefix", "/api/v1", "path prefix of the API")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "seed an admin account with this email")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "admin", "password of the seeded admin")
	cmd.Flags().BoolVar(&signUpToken, "signup-token", false, "return a token from sign-up")
	cmd.Flags().DurationVar(&ttl, "token-ttl", time.Hour, "token lifetime")
	return cmd
}
