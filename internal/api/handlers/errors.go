package handlers

import (
	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

// writeError renders err with the status of its kind. Unclassified errors
// are reported as internal without leaking their text.
func writeError(c *fiber.Ctx, err error) error {
	appErr, ok := apperr.As(err)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
			"kind":  apperr.KindInternal,
			"code":  fiber.StatusInternalServerError,
		})
	}

	body := fiber.Map{
		"error": appErr.Error(),
		"kind":  appErr.Kind,
		"code":  appErr.Status,
	}
	if appErr.Kind == apperr.KindInvalidMessage {
		body["index"] = appErr.Index
		body["field"] = appErr.Field
	}
	if appErr.Kind == apperr.KindRemoteRejected {
		body["remote_status"] = appErr.RemoteStatus
		if appErr.RemoteBody != nil {
			body["remote_error"] = appErr.RemoteBody
		}
	}

	return c.Status(appErr.Status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return writeError(c, apperr.InvalidArgument(msg))
}
