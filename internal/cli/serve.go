package cli

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/internal/views"
	"github.com/goliatone/go-auth-session/metrics"
	"github.com/goliatone/go-auth-session/middleware/csrf"
	"github.com/goliatone/go-auth-session/middleware/guard"
	"github.com/spf13/cobra"
)

func (r *root) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI for the local session",
		Long: `Serve the web UI for the local session. Pages are gated by the route guard;
the API enforces authorization on its own for every call made on your behalf.

With the file store, sign-ins and sign-outs made by other sessionctl commands
are picked up while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app) error {
				return a.serve(ctx)
			})
		},
	}

	cmd.Flags().String("listen", "", "listen address (default 127.0.0.1:3000)")
	cmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics")
	cmd.Flags().Bool("watch", true, "follow session changes made by other processes")
	_ = r.v.BindPFlag("serve.listen", cmd.Flags().Lookup("listen"))
	_ = r.v.BindPFlag("serve.metrics", cmd.Flags().Lookup("metrics"))
	_ = r.v.BindPFlag("serve.watch", cmd.Flags().Lookup("watch"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.file != nil && a.cfg.Serve.Watch {
		go a.watch(ctx)
	}

	srv := a.webApp()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Listen(a.cfg.Serve.Listen)
	}()
	a.logger.Warn("serving session UI on http://%s", a.cfg.Serve.Listen)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.ShutdownWithContext(shutdown)
}

func (a *app) watch(ctx context.Context) {
	err := a.file.Watch(ctx, func(token string, ok bool) {
		current := a.sm.Snapshot()
		if ok && token == current.Token {
			return
		}
		if !ok && !current.HasToken() {
			return
		}
		a.logger.Info("session file changed, restoring session")
		a.sm.Bootstrap(ctx)
	})
	if err != nil {
		a.logger.Error("session watcher stopped: %v", err)
	}
}

// webApp builds the fiber application of the web UI
func (a *app) webApp() *fiber.App {
	html := views.NewHTML()
	web := &webHandlers{app: a, html: html}

	srv := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ErrorHandler:          web.errorHandler,
	})

	if a.cfg.Serve.Metrics {
		srv.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(a.registry)))
	}

	srv.Use(csrf.New(csrf.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			a.logger.Warn("rejected %s %s: %v", c.Method(), c.OriginalURL(), err)
			return fiber.NewError(fiber.StatusForbidden, "The form expired, reload the page and try again")
		},
	}))
	srv.Get(csrf.DefaultRoutePath, csrf.TokenHandler())

	pages := guard.New(guard.Config{
		Source: a.sm,
		Router: a.router,
		Logger: a.logger.GetLogger("middleware.guard"),
		LoadingHandler: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, "1")
			return web.page(c.Status(fiber.StatusServiceUnavailable), "Loading", html.Loading(), "")
		},
	})
	signedIn := guard.Protect(a.sm, session.RequireAuthentication(), guard.Config{
		Router: a.router,
		Logger: a.logger.GetLogger("middleware.guard"),
	})

	routes := a.router.Config()

	srv.Get("/", pages, web.dashboard)
	srv.Get(routes.GetSignInRoute(), pages, web.signInPage)
	srv.Post(routes.GetSignInRoute(), web.signIn)
	srv.Get(routes.GetSignUpRoute(), pages, web.signUpPage)
	srv.Post(routes.GetSignUpRoute(), web.signUp)
	srv.Post("/auth/signout", web.signOut)
	srv.Get(routes.GetPendingRoute(), pages, web.pendingPage)
	srv.Post(routes.GetPendingRoute()+"/check", web.pendingCheck)
	srv.Get("/profile", pages, web.profilePage)
	srv.Post("/profile", signedIn, web.updateProfile)
	srv.Post("/profile/password", signedIn, web.updatePassword)
	srv.Get("/admin/users", pages, web.usersPage)

	return srv
}

type webHandlers struct {
	app  *app
	html *views.HTML
}

func (w *webHandlers) page(c *fiber.Ctx, title, body, flash string) error {
	c.Type("html", "utf-8")
	w.html.Page(c, title, body, flash)
	return nil
}

// forms returns the renderer for c with its CSRF field
func (w *webHandlers) forms(c *fiber.Ctx) *views.HTML {
	return w.html.WithCSRF(csrf.Field(c))
}

func (w *webHandlers) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := session.UserMessage(err, "Something went wrong")
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	}
	w.app.logger.Error("%s %s: %v", c.Method(), c.OriginalURL(), err)
	return w.page(c.Status(code), "Error", "", msg)
}

func (w *webHandlers) flash(*fiber.Ctx) string {
	return w.app.sm.Snapshot().ErrorMessage()
}

func (w *webHandlers) seeOther(c *fiber.Ctx, location string) error {
	return c.Redirect(location, fiber.StatusSeeOther)
}

func (w *webHandlers) dashboard(c *fiber.Ctx) error {
	identity, _ := session.IdentityFromContext(c.UserContext())
	return w.page(c, "Dashboard", w.forms(c).Dashboard(identity), w.flash(c))
}

func (w *webHandlers) signInPage(c *fiber.Ctx) error {
	snap := w.app.sm.Snapshot()
	if snap.IsActive() {
		return c.Redirect(w.app.router.TakeRedirect())
	}
	return w.page(c, "Sign in", w.forms(c).SignIn(c.Query("email")), w.flash(c))
}

func (w *webHandlers) signIn(c *fiber.Ctx) error {
	var form session.SignInForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	identity, err := w.app.sm.SignIn(c.UserContext(), form)
	if err != nil {
		msg := session.UserMessage(err, "Invalid email or password")
		return w.page(c.Status(fiber.StatusUnauthorized), "Sign in", w.forms(c).SignIn(form.Email), msg)
	}

	if identity.IsPending() {
		return w.seeOther(c, w.app.router.Config().GetPendingRoute())
	}
	return w.seeOther(c, w.app.router.TakeRedirect())
}

func (w *webHandlers) signUpPage(c *fiber.Ctx) error {
	return w.page(c, "Sign up", w.forms(c).SignUp("", ""), "")
}

func (w *webHandlers) signUp(c *fiber.Ctx) error {
	var form session.SignUpForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := w.app.sm.SignUp(c.UserContext(), form)
	if err != nil {
		msg := session.UserMessage(err, "Signup failed. Please try again.")
		return w.page(c.Status(fiber.StatusBadRequest), "Sign up", w.forms(c).SignUp(form.Name, form.Email), msg)
	}

	switch {
	case result.RequiresApproval:
		return w.seeOther(c, w.app.router.Config().GetPendingRoute())
	case result.SignedIn:
		return w.seeOther(c, w.app.router.TakeRedirect())
	default:
		return w.seeOther(c, w.app.router.Config().GetSignInRoute()+"?email="+url.QueryEscape(form.Email))
	}
}

func (w *webHandlers) signOut(c *fiber.Ctx) error {
	w.app.sm.SignOut(c.UserContext())
	return w.seeOther(c, w.app.router.Config().GetSignInRoute())
}

func (w *webHandlers) pendingPage(c *fiber.Ctx) error {
	view, ok := w.app.pending.View()
	if !ok {
		decision := w.app.pending.Decision()
		if decision.Outcome == session.OutcomeRedirect {
			return c.Redirect(decision.Location)
		}
		return w.page(c.Status(fiber.StatusServiceUnavailable), "Loading", w.forms(c).Loading(), "")
	}
	return w.page(c, "Pending approval", w.forms(c).Pending(view), "")
}

func (w *webHandlers) pendingCheck(c *fiber.Ctx) error {
	decision := w.app.pending.CheckAgain(c.UserContext())
	switch decision.Outcome {
	case session.OutcomeRedirect:
		return w.seeOther(c, decision.Location)
	default:
		return w.seeOther(c, w.app.router.Config().GetPendingRoute())
	}
}

func (w *webHandlers) profilePage(c *fiber.Ctx) error {
	identity, _ := session.IdentityFromContext(c.UserContext())
	return w.page(c, "Profile", w.forms(c).Profile(identity), w.flash(c))
}

func (w *webHandlers) updateProfile(c *fiber.Ctx) error {
	var form session.UpdateProfileForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if _, err := w.app.sm.UpdateProfile(c.UserContext(), form); err != nil {
		w.app.logger.Info("profile update failed: %v", err)
	}
	return w.seeOther(c, "/profile")
}

func (w *webHandlers) updatePassword(c *fiber.Ctx) error {
	var form session.UpdatePasswordForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := w.app.sm.UpdatePassword(c.UserContext(), form); err != nil {
		w.app.logger.Info("password update failed: %v", err)
	}
	return w.seeOther(c, "/profile")
}

func (w *webHandlers) usersPage(c *fiber.Ctx) error {
	var users []session.Identity
	err := w.app.sm.Authenticated(c.UserContext(), "admin.users.list", func(ctx context.Context, token string) error {
		var err error
		users, err = w.app.client.Users.List(ctx, token, nil)
		return err
	})

	switch {
	case session.IsUnauthorized(err):
		return c.Redirect(w.app.router.Config().GetSignInRoute())
	case session.IsForbidden(err):
		return c.Redirect(w.app.router.Config().GetNotPermittedRoute())
	case err != nil:
		return w.page(c.Status(fiber.StatusBadGateway), "Users", "", session.UserMessage(err, "Unable to load users"))
	}

	return w.page(c, "Users", w.forms(c).Users(users), "")
}
