package http

import (
	"errors"
	"strings"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
	"github.com/gofiber/fiber/v2"
)

var errIDInvalido = errors.New("el ID debe ser un número entero positivo")

// parseID lee el parámetro :id de la ruta
func parseID(c *fiber.Ctx) (int, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, errIDInvalido
	}
	return id, nil
}

// optional convierte un campo de formulario vacío en nil
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// respondError traduce los errores de dominio a su código HTTP
func respondError(c *fiber.Ctx, err error) error {
	var verr *domain.ErrorValidacion
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    verr.Error(),
			"detalles": verr.Errores,
		})
	case errors.Is(err, domain.ErrEmailDuplicado), errors.Is(err, errIDInvalido):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrPersonaNoEncontrada), errors.Is(err, domain.ErrEventoNoEncontrado):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		// el ErrorHandler registra y responde 500
		return err
	}
}

// ErrorHandler responde {"error": ...} para los errores que llegan sin tratar
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Error interno del servidor"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			log.Errorf(err, "Error no controlado en %s %s", c.Method(), c.Path())
		}

		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
