package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// APIRateLimit limits requests per caller (token subject, or IP before
// authentication)
func APIRateLimit(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "api:" + callerKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "API rate limit exceeded. Please slow down your requests.",
				"kind":  "rate_limited",
				"code":  fiber.StatusTooManyRequests,
			})
		},
	})
}

// RemoteRateLimit guards routes that call Chatwork (10 per minute). Failed
// requests do not count.
func RemoteRateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "remote:" + callerKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Chatwork rate limit exceeded. Please wait before syncing again.",
				"kind":  "rate_limited",
				"code":  fiber.StatusTooManyRequests,
			})
		},
		SkipFailedRequests: true,
	})
}

func callerKey(c *fiber.Ctx) string {
	if subject := c.Locals(localsSubject); subject != nil {
		return fmt.Sprintf("sub:%s", subject)
	}
	return fmt.Sprintf("ip:%s", c.IP())
}
