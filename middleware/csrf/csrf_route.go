package csrf

import "github.com/gofiber/fiber/v2"

// DefaultRoutePath is where scripts fetch a token from
const DefaultRoutePath = "/csrf"

// TokenHandler answers with the request token and the names it is expected
// under. The middleware must run before it.
func TokenHandler(key ...string) fiber.Handler {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	return func(c *fiber.Ctx) error {
		token := Token(c, k)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrTokenMissing.Error()})
		}

		c.Set(fiber.HeaderCacheControl, "no-store, max-age=0")
		c.Set(fiber.HeaderPragma, "no-cache")

		fieldName := DefaultFormFieldName
		if v, ok := c.Locals(k + "_field").(string); ok && v != "" {
			fieldName = v
		}
		headerName := DefaultHeaderName
		if v, ok := c.Locals(k + "_header").(string); ok && v != "" {
			headerName = v
		}

		return c.JSON(fiber.Map{
			"token":       token,
			"field_name":  fieldName,
			"header_name": headerName,
		})
	}
}
