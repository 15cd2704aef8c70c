package http

import (
	"context"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// PersonaService es lo que los handlers necesitan del servicio de personas
type PersonaService interface {
	GuardarPersona(ctx context.Context, p *domain.Persona) error
	CrearPersona(ctx context.Context, p *domain.Persona) error
	ActualizarPersona(ctx context.Context, id int, cambios domain.PersonaUpdate) (*domain.Persona, error)
	EliminarPersona(ctx context.Context, id int) error
	ObtenerPorID(ctx context.Context, id int) (*domain.Persona, error)
	ObtenerTodos(ctx context.Context) ([]domain.Persona, error)
	ObtenerPorEmail(ctx context.Context, email string) (*domain.Persona, error)
}

type PersonaHandler struct {
	service PersonaService
}

// NewPersonaHandler crea una nueva instancia del handler REST de personas
func NewPersonaHandler(service PersonaService) *PersonaHandler {
	return &PersonaHandler{
		service: service,
	}
}

type personaRequest struct {
	Nombre    string  `json:"nombre"`
	Apellido  string  `json:"apellido"`
	Email     string  `json:"email"`
	Telefono  *string `json:"telefono"`
	Direccion *string `json:"direccion"`
}

// Los campos ausentes del JSON no se modifican
type personaUpdateRequest struct {
	Nombre    *string `json:"nombre"`
	Apellido  *string `json:"apellido"`
	Email     *string `json:"email"`
	Telefono  *string `json:"telefono"`
	Direccion *string `json:"direccion"`
}

// RegisterRoutes monta las rutas bajo /api/personas
func (h *PersonaHandler) RegisterRoutes(router fiber.Router) {
	personas := router.Group("/personas")
	personas.Post("/", h.Create)
	personas.Get("/", h.GetAll)
	// antes de /:id para que "buscar" no se tome como ID
	personas.Get("/buscar", h.GetByEmail)
	personas.Get("/:id", h.GetByID)
	personas.Put("/:id", h.Update)
	personas.Delete("/:id", h.Delete)
}

// Create registra una persona nueva
func (h *PersonaHandler) Create(c *fiber.Ctx) error {
	var req personaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "JSON inválido"})
	}

	persona := &domain.Persona{
		Nombre:    req.Nombre,
		Apellido:  req.Apellido,
		Email:     req.Email,
		Telefono:  req.Telefono,
		Direccion: req.Direccion,
	}
	if err := h.service.CrearPersona(c.UserContext(), persona); err != nil {
		return respondError(c, err)
	}

	return c.JSON(persona)
}

// GetAll lista todas las personas
func (h *PersonaHandler) GetAll(c *fiber.Ctx) error {
	personas, err := h.service.ObtenerTodos(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(personas)
}

// GetByEmail busca por ?email=
func (h *PersonaHandler) GetByEmail(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "El parámetro email es requerido",
		})
	}

	persona, err := h.service.ObtenerPorEmail(c.UserContext(), email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(persona)
}

// GetByID obtiene una persona por su ID
func (h *PersonaHandler) GetByID(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	persona, err := h.service.ObtenerPorID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(persona)
}

// Update aplica los campos recibidos sobre la persona
func (h *PersonaHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req personaUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "JSON inválido"})
	}

	persona, err := h.service.ActualizarPersona(c.UserContext(), id, domain.PersonaUpdate{
		Nombre:    req.Nombre,
		Apellido:  req.Apellido,
		Email:     req.Email,
		Telefono:  req.Telefono,
		Direccion: req.Direccion,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(persona)
}

// Delete elimina una persona
func (h *PersonaHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.service.EliminarPersona(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
