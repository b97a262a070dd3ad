package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/internal/views"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func (r *root) signInCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and persist the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				pw, err := secret(cmd, password, "Password: ")
				if err != nil {
					return err
				}

				identity, err := a.sm.SignIn(ctx, session.SignInForm{Email: email, Password: pw})
				if err != nil {
					return userError(err, "Invalid email or password")
				}

				if identity.IsPending() {
					views.Pending(a.out, session.PendingView{
						Name:     identity.Name,
						Email:    identity.Email,
						Message:  session.PendingMessage,
						SignedIn: true,
					})
					return nil
				}

				fmt.Fprintf(a.out, "Signed in as %s\n", identity.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (r *root) signUpCommand() *cobra.Command {
	var form session.SignUpForm

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account. New accounts usually need an administrator's approval
before they can sign in; the first account of a fresh backend becomes admin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				pw, err := secret(cmd, form.Password, "Password: ")
				if err != nil {
					return err
				}
				form.Password = pw

				result, err := a.sm.SignUp(ctx, form)
				if err != nil {
					return userError(err, "Signup failed. Please try again.")
				}

				if result.RequiresApproval {
					views.Pending(a.out, session.PendingView{
						Name:     result.Identity.Name,
						Email:    result.Identity.Email,
						Message:  session.PendingMessage,
						SignedIn: result.SignedIn,
					})
					return nil
				}

				if result.SignedIn {
					fmt.Fprintf(a.out, "Account created, signed in as %s\n", result.Identity.Email)
				} else {
					fmt.Fprintf(a.out, "Account created for %s, you can sign in now\n", result.Identity.Email)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&form.Name, "name", "", "display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&form.ProfileImageURL, "image", "", "profile image URL")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (r *root) signOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				a.sm.SignOut(ctx)
				fmt.Fprintln(a.out, "Signed out")
				return nil
			})
		},
	}
}

func (r *root) whoamiCommand() *cobra.Command {
	var asJSON, showToken bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				snap := a.sm.Snapshot()
				if showToken && snap.HasToken() {
					views.Token(a.out, session.InspectToken(snap.Token), time.Now())
				}
				return a.view(a.router.Config().GetDefaultRoute(), func() error {
					if asJSON {
						fmt.Fprintln(a.out, print.MaybePrettyJSON(snap.Identity))
						return nil
					}
					views.Session(a.out, snap)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the identity as JSON")
	cmd.Flags().BoolVar(&showToken, "token", false, "describe the stored token (unverified)")
	return cmd
}

func (r *root) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Show what the route guard decides for a view",
		Example: `  sessionctl open /admin/users
  sessionctl open /profile`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				views.Decision(a.out, args[0], a.router.Decide(a.sm.Snapshot(), args[0]))
				return nil
			})
		},
	}
}

func (r *root) profileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile of the signed in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				return a.view("/profile", func() error {
					views.Identity(a.out, a.sm.Snapshot().Identity)
					return nil
				})
			})
		},
	}

	var form session.UpdateProfileForm
	update := &cobra.Command{
		Use:   "update",
		Short: "Change name or profile image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				return a.view("/profile", func() error {
					identity, err := a.sm.UpdateProfile(ctx, form)
					if err != nil {
						return userError(err, "Failed to update profile")
					}
					views.Identity(a.out, identity)
					return nil
				})
			})
		},
	}
	update.Flags().StringVar(&form.Name, "name", "", "display name")
	update.Flags().StringVar(&form.ProfileImageURL, "image", "", "profile image URL")
	_ = update.MarkFlagRequired("name")

	cmd.AddCommand(update)
	return cmd
}

func (r *root) passwordCommand() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				return a.view("/profile", func() error {
					ask := prompter(cmd)
					pw, err := ask(current, "Current password: ")
					if err != nil {
						return err
					}
					npw, err := ask(next, "New password: ")
					if err != nil {
						return err
					}

					if err := a.sm.UpdatePassword(ctx, session.UpdatePasswordForm{Password: pw, NewPassword: npw}); err != nil {
						return userError(err, "Failed to update password")
					}
					fmt.Fprintln(a.out, "Password updated")
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when empty)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when empty)")
	return cmd
}

func (r *root) pendingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show the approval status of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				if view, ok := a.pending.View(); ok {
					views.Pending(a.out, view)
					return nil
				}
				views.Decision(a.out, a.router.Config().GetPendingRoute(), a.pending.Decision())
				return nil
			})
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Check once whether the account was approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				return landed(a, a.pending.CheckAgain(ctx))
			})
		},
	}

	var interval time.Duration
	poll := &cobra.Command{
		Use:   "poll",
		Short: "Wait until the account is approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				p := session.NewPendingInterstitial(a.sm, a.router,
					session.WithPendingPollInterval(interval),
					session.WithPendingLogger(a.logger.GetLogger("session.pending")),
				)
				decision, err := p.Poll(ctx)
				if err != nil {
					return err
				}
				return landed(a, decision)
			})
		},
	}
	poll.Flags().DurationVar(&interval, "interval", session.DefaultPendingPollInterval, "time between checks")

	cmd.AddCommand(check, poll)
	return cmd
}

func landed(a *app, decision session.Decision) error {
	switch decision.Outcome {
	case session.OutcomeInterstitial:
		if view, ok := a.pending.View(); ok {
			views.Pending(a.out, view)
		}
		return errPending
	case session.OutcomeRedirect:
		if decision.Reason == session.ReasonAllowed {
			fmt.Fprintln(a.out, "Account approved")
			views.Session(a.out, a.sm.Snapshot())
			return nil
		}
	}
	views.Decision(a.out, a.router.Config().GetPendingRoute(), decision)
	return nil
}

// prompter returns a function that yields val or reads one line from stdin
func prompter(cmd *cobra.Command) func(val, prompt string) (string, error) {
	var in *bufio.Reader
	return func(val, prompt string) (string, error) {
		if val != "" {
			return val, nil
		}
		if in == nil {
			in = bufio.NewReader(cmd.InOrStdin())
		}
		return readLine(cmd, in, prompt)
	}
}

func secret(cmd *cobra.Command, val, prompt string) (string, error) {
	return prompter(cmd)(val, prompt)
}

func readLine(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
