package guard

import (
	"github.com/gofiber/fiber/v2"
	session "github.com/goliatone/go-auth-session"
)

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Source == nil {
		panic("guard: Config.Source is required")
	}

	if cfg.Router == nil {
		cfg.Router = session.NewRouter(nil)
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.DecisionKey == "" {
		cfg.DecisionKey = DefaultDecisionKey
	}

	if cfg.Logger == nil {
		_, cfg.Logger = session.ResolveLogger("middleware.guard", nil, nil)
	}

	if cfg.LoadingHandler == nil {
		cfg.LoadingHandler = defaultLoadingHandler
	}

	if cfg.RedirectHandler == nil {
		cfg.RedirectHandler = defaultRedirectHandler
	}

	if cfg.InterstitialHandler == nil {
		pending := cfg.Router.Config().GetPendingRoute()
		cfg.InterstitialHandler = func(c *fiber.Ctx) error {
			if session.CleanPath(c.Path()) == session.CleanPath(pending) {
				return c.Next()
			}
			return redirect(c, pending)
		}
	}

	return cfg
}

func defaultLoadingHandler(c *fiber.Ctx) error {
	c.Set(fiber.HeaderRetryAfter, "1")
	return c.Status(fiber.StatusServiceUnavailable).SendString("Loading session")
}

func defaultRedirectHandler(c *fiber.Ctx, decision session.Decision) error {
	return redirect(c, decision.Location)
}

// redirect answers 302 for GET requests and 303 otherwise so browsers
// follow form posts with a GET
func redirect(c *fiber.Ctx, location string) error {
	status := fiber.StatusFound
	if c.Method() != fiber.MethodGet {
		status = fiber.StatusSeeOther
	}
	return c.Redirect(location, status)
}
