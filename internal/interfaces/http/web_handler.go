package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Claves de los mensajes flash en la sesión
const (
	flashMensaje = "mensaje"
	flashError   = "error"
)

const (
	msgGuardada       = "Persona guardada exitosamente"
	msgEliminada      = "Persona eliminada exitosamente"
	msgNoEncontrada   = "Persona no encontrada"
	msgEmailDuplicado = "El email ya está registrado"
)

type WebHandler struct {
	service PersonaService
	store   *session.Store
	log     *logger.Logger
}

// NewWebHandler crea el handler de las páginas HTML
func NewWebHandler(service PersonaService, store *session.Store, log *logger.Logger) *WebHandler {
	return &WebHandler{
		service: service,
		store:   store,
		log:     log.With("component", "web"),
	}
}

// personaForm son los datos de una persona tal como se muestran en las vistas
type personaForm struct {
	ID        int
	Nombre    string
	Apellido  string
	Email     string
	Telefono  string
	Direccion string
}

func toForm(p *domain.Persona) personaForm {
	f := personaForm{ID: p.ID, Nombre: p.Nombre, Apellido: p.Apellido, Email: p.Email}
	if p.Telefono != nil {
		f.Telefono = *p.Telefono
	}
	if p.Direccion != nil {
		f.Direccion = *p.Direccion
	}
	return f
}

// RegisterRoutes monta las páginas en la raíz
func (h *WebHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.Index)
	router.Get("/nuevo", h.Nuevo)
	router.Post("/guardar", h.Guardar)
	router.Get("/editar/:id", h.Editar)
	router.Get("/eliminar/:id", h.Eliminar)
	router.Get("/ver/:id", h.Ver)
}

// Index muestra el listado y consume los mensajes flash
func (h *WebHandler) Index(c *fiber.Ctx) error {
	personas, err := h.service.ObtenerTodos(c.UserContext())
	if err != nil {
		return err
	}

	filas := make([]personaForm, 0, len(personas))
	for i := range personas {
		filas = append(filas, toForm(&personas[i]))
	}

	return h.render(c, "index", fiber.Map{
		"Titulo":   "Agenda de personas",
		"Personas": filas,
	})
}

// Nuevo muestra el formulario vacío
func (h *WebHandler) Nuevo(c *fiber.Ctx) error {
	return h.render(c, "formulario", fiber.Map{
		"Titulo":  "Nueva persona",
		"Accion":  "Crear",
		"Persona": personaForm{},
	})
}

// Guardar crea o actualiza según venga el campo oculto id
func (h *WebHandler) Guardar(c *fiber.Ctx) error {
	persona := &domain.Persona{
		Nombre:    c.FormValue("nombre"),
		Apellido:  c.FormValue("apellido"),
		Email:     c.FormValue("email"),
		Telefono:  optional(c.FormValue("telefono")),
		Direccion: optional(c.FormValue("direccion")),
	}

	volver := "/nuevo"
	if idStr := strings.TrimSpace(c.FormValue("id")); idStr != "" {
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return h.redirect(c, "/", flashError, msgNoEncontrada)
		}
		persona.ID = id
		volver = fmt.Sprintf("/editar/%d", id)
	}

	var err error
	if persona.EsNueva() {
		err = h.service.CrearPersona(c.UserContext(), persona)
	} else {
		err = h.service.GuardarPersona(c.UserContext(), persona)
	}

	var verr *domain.ErrorValidacion
	switch {
	case err == nil:
		return h.redirect(c, "/", flashMensaje, msgGuardada)
	case errors.Is(err, domain.ErrEmailDuplicado):
		return h.redirect(c, volver, flashError, msgEmailDuplicado)
	case errors.As(err, &verr):
		return h.redirect(c, volver, flashError, verr.Error())
	case errors.Is(err, domain.ErrPersonaNoEncontrada):
		return h.redirect(c, "/", flashError, msgNoEncontrada)
	default:
		h.log.Error(err, "Error al guardar persona")
		return h.redirect(c, "/", flashError, "Error al guardar: "+err.Error())
	}
}

// Editar muestra el formulario con los datos guardados
func (h *WebHandler) Editar(c *fiber.Ctx) error {
	persona, ok, err := h.buscar(c)
	if !ok {
		return err
	}

	return h.render(c, "formulario", fiber.Map{
		"Titulo":  "Editar persona",
		"Accion":  "Editar",
		"Persona": toForm(persona),
	})
}

// Eliminar borra la persona y vuelve al listado
func (h *WebHandler) Eliminar(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return h.redirect(c, "/", flashError, msgNoEncontrada)
	}

	err = h.service.EliminarPersona(c.UserContext(), id)
	switch {
	case err == nil:
		return h.redirect(c, "/", flashMensaje, msgEliminada)
	case errors.Is(err, domain.ErrPersonaNoEncontrada):
		return h.redirect(c, "/", flashError, msgNoEncontrada)
	default:
		h.log.Errorf(err, "Error al eliminar persona %d", id)
		return h.redirect(c, "/", flashError, "Error al eliminar: "+err.Error())
	}
}

// Ver muestra el detalle de una persona
func (h *WebHandler) Ver(c *fiber.Ctx) error {
	persona, ok, err := h.buscar(c)
	if !ok {
		return err
	}

	return h.render(c, "detalle", fiber.Map{
		"Titulo":  persona.Nombre,
		"Persona": toForm(persona),
	})
}

// buscar resuelve :id; si no hay persona ya respondió con la redirección (ok=false)
func (h *WebHandler) buscar(c *fiber.Ctx) (*domain.Persona, bool, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, false, h.redirect(c, "/", flashError, msgNoEncontrada)
	}

	persona, err := h.service.ObtenerPorID(c.UserContext(), id)
	if errors.Is(err, domain.ErrPersonaNoEncontrada) {
		return nil, false, h.redirect(c, "/", flashError, msgNoEncontrada)
	}
	if err != nil {
		return nil, false, err
	}
	return persona, true, nil
}

func (h *WebHandler) redirect(c *fiber.Ctx, path, key, msg string) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return err
	}
	sess.Set(key, msg)
	if err := sess.Save(); err != nil {
		return err
	}
	return c.Redirect(path, fiber.StatusSeeOther)
}

// render agrega los mensajes flash pendientes y los borra de la sesión
func (h *WebHandler) render(c *fiber.Ctx, view string, data fiber.Map) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return err
	}

	consumido := false
	for key, campo := range map[string]string{flashMensaje: "Mensaje", flashError: "Error"} {
		if msg, ok := sess.Get(key).(string); ok {
			data[campo] = msg
			sess.Delete(key)
			consumido = true
		}
	}
	if consumido {
		if err := sess.Save(); err != nil {
			return err
		}
	}

	return c.Render(view, data)
}
