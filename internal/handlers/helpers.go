package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/woworkers/woworkers-api/internal/services/contracts"
)

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, fmt.Errorf("unauthorized")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		return uuid.Parse(t)
	case []byte:
		return uuid.ParseBytes(t)
	default:
		return uuid.Nil, fmt.Errorf("invalid userId type: %T", v)
	}
}

// serviceError maps the contracts error kinds onto HTTP responses. Anything
// unrecognized is a 500 and gets logged.
func serviceError(c *fiber.Ctx, err error) error {
	var (
		nf *contracts.NotFoundError
		pe *contracts.PreconditionError
		ce *contracts.ConflictError
		ve *contracts.ValidationError
	)

	switch {
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": nf.Error()})
	case errors.As(err, &pe):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "message": pe.Error()})
	case errors.As(err, &ce):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": ce.Error()})
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": ve.Error()})
	}

	log.Println("Unexpected service error:", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Something went wrong",
	})
}
