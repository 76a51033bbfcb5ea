package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the header a caller may use to propagate an existing ray id.
const HeaderName = "X-Ray-Id"

// New returns a middleware that assigns every request a ray id, either taken
// from the incoming header or freshly generated, and echoes it back.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderName)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set(HeaderName, rid)
		return c.Next()
	}
}
