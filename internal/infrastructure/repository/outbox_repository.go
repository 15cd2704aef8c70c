package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
)

type outboxRepository struct {
	db dbtx
}

// NewOutboxRepository crea el repositorio del outbox de sincronización
func NewOutboxRepository(db *sql.DB) domain.OutboxRepository {
	return &outboxRepository{db: db}
}

const outboxColumns = `id, event_id, destino, operacion, persona_id, payload, intentos, estado,
	ultimo_error, proximo_intento, creado_en, actualizado_en`

func scanEvento(row rowScanner) (domain.EventoSync, error) {
	var ev domain.EventoSync
	var payload []byte
	var ultimoError sql.NullString

	err := row.Scan(
		&ev.ID,
		&ev.EventID,
		&ev.Destino,
		&ev.Operacion,
		&ev.PersonaID,
		&payload,
		&ev.Intentos,
		&ev.Estado,
		&ultimoError,
		&ev.ProximoIntento,
		&ev.CreadoEn,
		&ev.ActualizadoEn,
	)
	if err != nil {
		return ev, err
	}

	ev.Payload = payload
	if ultimoError.Valid {
		ev.UltimoError = &ultimoError.String
	}
	return ev, nil
}

func scanEventos(rows *sql.Rows) ([]domain.EventoSync, error) {
	defer rows.Close()

	eventos := []domain.EventoSync{}
	for rows.Next() {
		ev, err := scanEvento(rows)
		if err != nil {
			return nil, fmt.Errorf("error al leer evento: %w", err)
		}
		eventos = append(eventos, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error al recorrer eventos: %w", err)
	}
	return eventos, nil
}

// Encolar guarda un nuevo evento pendiente
func (r *outboxRepository) Encolar(ctx context.Context, ev *domain.EventoSync) error {
	query := `
		INSERT INTO sync_outbox (event_id, destino, operacion, persona_id, payload, estado, proximo_intento)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, creado_en, actualizado_en
	`

	err := r.db.QueryRowContext(ctx, query,
		ev.EventID,
		ev.Destino,
		ev.Operacion,
		ev.PersonaID,
		[]byte(ev.Payload),
		ev.Estado,
		ev.ProximoIntento,
	).Scan(&ev.ID, &ev.CreadoEn, &ev.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("error al encolar evento de sincronización: %w", err)
	}

	return nil
}

// ReclamarPendientes toma eventos vencidos con FOR UPDATE SKIP LOCKED para que
// varias instancias puedan compartir el outbox sin entregar dos veces.
func (r *outboxRepository) ReclamarPendientes(ctx context.Context, ahora time.Time, lease time.Duration, limite int) ([]domain.EventoSync, error) {
	query := `
		UPDATE sync_outbox
		SET estado = 'procesando', proximo_intento = $2, actualizado_en = NOW()
		WHERE id IN (
			SELECT candidato.id FROM sync_outbox candidato
			WHERE candidato.estado IN ('pendiente', 'procesando') AND candidato.proximo_intento <= $1
				AND NOT EXISTS (
					SELECT 1 FROM sync_outbox previo
					WHERE previo.persona_id = candidato.persona_id
						AND previo.destino = candidato.destino
						AND previo.id < candidato.id
						AND previo.estado IN ('pendiente', 'procesando')
				)
			ORDER BY candidato.id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := r.db.QueryContext(ctx, query, ahora, ahora.Add(lease), limite)
	if err != nil {
		return nil, fmt.Errorf("error al reclamar eventos pendientes: %w", err)
	}

	eventos, err := scanEventos(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING no garantiza orden
	sort.Slice(eventos, func(i, j int) bool { return eventos[i].ID < eventos[j].ID })
	return eventos, nil
}

// MarcarEntregado cierra un evento entregado correctamente
func (r *outboxRepository) MarcarEntregado(ctx context.Context, ev domain.EventoSync) error {
	query := `
		UPDATE sync_outbox
		SET estado = 'entregado', intentos = intentos + 1, ultimo_error = NULL, actualizado_en = NOW()
		WHERE id = $1 AND estado = 'procesando' AND proximo_intento = $2
	`
	return r.marcar(ctx, "error al marcar evento entregado", query, ev.ID, ev.ProximoIntento)
}

// MarcarReintento devuelve el evento a pendiente para un nuevo intento
func (r *outboxRepository) MarcarReintento(ctx context.Context, ev domain.EventoSync, intentos int, proximo time.Time, ultimoError string) error {
	query := `
		UPDATE sync_outbox
		SET estado = 'pendiente', intentos = $3, proximo_intento = $4, ultimo_error = $5, actualizado_en = NOW()
		WHERE id = $1 AND estado = 'procesando' AND proximo_intento = $2
	`
	return r.marcar(ctx, "error al programar reintento", query, ev.ID, ev.ProximoIntento, intentos, proximo, ultimoError)
}

// MarcarFallido deja el evento para revisión manual
func (r *outboxRepository) MarcarFallido(ctx context.Context, ev domain.EventoSync, intentos int, ultimoError string) error {
	query := `
		UPDATE sync_outbox
		SET estado = 'fallido', intentos = $3, ultimo_error = $4, actualizado_en = NOW()
		WHERE id = $1 AND estado = 'procesando' AND proximo_intento = $2
	`
	return r.marcar(ctx, "error al marcar evento fallido", query, ev.ID, ev.ProximoIntento, intentos, ultimoError)
}

// Listar devuelve los eventos más recientes, opcionalmente filtrados por estado
func (r *outboxRepository) Listar(ctx context.Context, estado domain.EstadoSync, limite int) ([]domain.EventoSync, error) {
	query := `SELECT ` + outboxColumns + ` FROM sync_outbox
		WHERE ($1 = '' OR estado = $1)
		ORDER BY id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, string(estado), limite)
	if err != nil {
		return nil, fmt.Errorf("error al listar eventos: %w", err)
	}
	return scanEventos(rows)
}

// Reintentar vuelve a poner en cola un evento fallido
func (r *outboxRepository) Reintentar(ctx context.Context, id int64) error {
	query := `
		UPDATE sync_outbox
		SET estado = 'pendiente', intentos = 0, proximo_intento = NOW(), actualizado_en = NOW()
		WHERE id = $1 AND estado = 'fallido'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error al reintentar evento: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error al verificar reintento: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrEventoNoEncontrado
	}

	return nil
}

// marcar aplica una transición sobre un evento reclamado. proximo_intento guarda
// el fin del lease, así que solo coincide con el worker que hizo el reclamo.
func (r *outboxRepository) marcar(ctx context.Context, msg, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if rowsAffected == 0 {
		return domain.ErrReclamoVencido
	}
	return nil
}
