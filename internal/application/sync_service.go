package application

import (
	"context"

	"github.com/Maxito7/agenda/internal/domain"
)

const (
	limiteEventosPorDefecto = 50
	limiteEventosMaximo     = 500
)

type SyncService struct {
	outbox domain.OutboxRepository
}

// NewSyncService crea el servicio de administración del outbox
func NewSyncService(outbox domain.OutboxRepository) *SyncService {
	return &SyncService{outbox: outbox}
}

// ListarEventos lista los eventos más recientes; estado vacío lista todos
func (s *SyncService) ListarEventos(ctx context.Context, estado string, limite int) ([]domain.EventoSync, error) {
	var filtro domain.EstadoSync
	if estado != "" {
		e, err := domain.ParseEstadoSync(estado)
		if err != nil {
			return nil, &domain.ErrorValidacion{Errores: []string{err.Error()}}
		}
		filtro = e
	}

	if limite <= 0 {
		limite = limiteEventosPorDefecto
	}
	if limite > limiteEventosMaximo {
		limite = limiteEventosMaximo
	}

	return s.outbox.Listar(ctx, filtro, limite)
}

// ReintentarEvento vuelve a poner en cola un evento fallido
func (s *SyncService) ReintentarEvento(ctx context.Context, id int64) error {
	return s.outbox.Reintentar(ctx, id)
}
