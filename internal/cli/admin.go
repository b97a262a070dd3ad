package cli

import (
	"context"
	"fmt"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/client"
	"github.com/goliatone/go-auth-session/internal/views"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

const adminUsersRoute = "/admin/users"

func (r *root) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative views",
	}

	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin role required)",
	}
	users.AddCommand(
		r.adminUsersListCommand(),
		r.adminUsersRoleCommand(),
		r.adminUsersDeleteCommand(),
		r.adminUsersAddCommand(),
	)

	cmd.AddCommand(users)
	return cmd
}

// admin runs fn behind the admin route guard with the session token
func (r *root) admin(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app, token string) error) error {
	return r.run(cmd, func(ctx context.Context, a *app) error {
		return a.view(adminUsersRoute, func() error {
			err := a.sm.Authenticated(ctx, operation, func(ctx context.Context, token string) error {
				return fn(ctx, a, token)
			})
			return userError(err, "The request failed")
		})
	})
}

func (r *root) adminUsersListCommand() *cobra.Command {
	var opts client.ListOptions
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.admin(cmd, "admin.users.list", func(ctx context.Context, a *app, token string) error {
				users, err := a.client.Users.List(ctx, token, &opts)
				if err != nil {
					return err
				}
				if asJSON {
					fmt.Fprintln(a.out, print.MaybePrettyJSON(users))
					return nil
				}
				views.Users(a.out, users)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "accounts to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum accounts to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the accounts as JSON")
	return cmd
}

func (r *root) adminUsersRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "role <id> <role>",
		Short:   "Change the role of an account",
		Example: "  sessionctl admin users role 7f0c... user",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := session.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q", args[1])
			}
			return r.admin(cmd, "admin.users.role", func(ctx context.Context, a *app, token string) error {
				updated, err := a.client.Users.UpdateRole(ctx, token, args[0], role)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s is now %s\n", updated.Email, updated.Role)
				return nil
			})
		},
	}
}

func (r *root) adminUsersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.admin(cmd, "admin.users.delete", func(ctx context.Context, a *app, token string) error {
				if err := a.client.Users.Delete(ctx, token, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (r *root) adminUsersAddCommand() *cobra.Command {
	var req client.AddUserRequest
	var role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "" {
				req.Role = session.UserRole(role)
			}
			pw, err := secret(cmd, req.Password, "Password: ")
			if err != nil {
				return err
			}
			req.Password = pw

			return r.admin(cmd, "admin.users.add", func(ctx context.Context, a *app, token string) error {
				created, err := a.client.Users.Add(ctx, token, req)
				if err != nil {
					return err
				}
				views.Identity(a.out, created)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&role, "role", "", "pending, user or admin (default user)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
