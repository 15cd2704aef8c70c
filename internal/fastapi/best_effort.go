package fastapi

import (
	"context"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
)

// BestEffort hace una única llamada y registra el fallo sin propagarlo
type BestEffort struct {
	client *Client
	log    *logger.Logger
}

// NewBestEffort crea el envoltorio de sincronización directa
func NewBestEffort(client *Client, log *logger.Logger) *BestEffort {
	return &BestEffort{client: client, log: log.With("component", "fastapi")}
}

// Crear replica una persona nueva
func (b *BestEffort) Crear(ctx context.Context, p *domain.Persona) {
	if err := b.client.CrearPersona(ctx, domain.NewPersonaPayload(p)); err != nil {
		b.log.Errorf(err, "Error al sincronizar creación de persona %d", p.ID)
		return
	}
	b.log.Debugf("Persona %d sincronizada", p.ID)
}

// Actualizar replica los cambios de una persona
func (b *BestEffort) Actualizar(ctx context.Context, p *domain.Persona) {
	if err := b.client.ActualizarPersona(ctx, p.ID, domain.NewPersonaPayload(p)); err != nil {
		b.log.Errorf(err, "Error al sincronizar actualización de persona %d", p.ID)
	}
}

// Eliminar replica el borrado de una persona
func (b *BestEffort) Eliminar(ctx context.Context, id int) {
	if err := b.client.EliminarPersona(ctx, id); err != nil {
		b.log.Errorf(err, "Error al sincronizar eliminación de persona %d", id)
	}
}
