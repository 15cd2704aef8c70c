package http

import (
	"context"
	"strconv"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// SyncAdmin administra el outbox de sincronización
type SyncAdmin interface {
	ListarEventos(ctx context.Context, estado string, limite int) ([]domain.EventoSync, error)
	ReintentarEvento(ctx context.Context, id int64) error
}

type SyncHandler struct {
	service SyncAdmin
}

func NewSyncHandler(service SyncAdmin) *SyncHandler {
	return &SyncHandler{service: service}
}

// RegisterRoutes monta /api/sync/eventos
func (h *SyncHandler) RegisterRoutes(router fiber.Router) {
	eventos := router.Group("/sync/eventos")
	eventos.Get("/", h.ListarEventos)
	eventos.Post("/:id/reintentar", h.Reintentar)
}

// ListarEventos acepta ?estado= y ?limit=
func (h *SyncHandler) ListarEventos(c *fiber.Ctx) error {
	eventos, err := h.service.ListarEventos(c.UserContext(), c.Query("estado"), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(eventos)
}

// Reintentar vuelve a poner en cola un evento fallido
func (h *SyncHandler) Reintentar(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return respondError(c, errIDInvalido)
	}

	if err := h.service.ReintentarEvento(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"mensaje": "Evento reencolado", "id": id})
}
