package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header carries the request ID to the worker and back to the client.
const Header = "X-Request-ID"

// LocalsKey is the Fiber locals key read by logger.WithRayID.
const LocalsKey = "ray_id"

// New returns the RayID middleware. An incoming X-Request-ID is kept so
// IDs assigned by an upstream proxy survive.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
			c.Request().Header.Set(Header, id)
		}
		c.Locals(LocalsKey, id)
		err := c.Next()
		// Set after the handler: a proxied response replaces all headers.
		c.Set(Header, id)
		return err
	}
}
