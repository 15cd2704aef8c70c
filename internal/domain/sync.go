package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperacionSync es la operación que debe replicarse en un destino externo
type OperacionSync string

const (
	OperacionCrear      OperacionSync = "crear"
	OperacionActualizar OperacionSync = "actualizar"
	OperacionEliminar   OperacionSync = "eliminar"
)

// EstadoSync es el estado de entrega de un evento del outbox
type EstadoSync string

const (
	EstadoPendiente  EstadoSync = "pendiente"
	EstadoProcesando EstadoSync = "procesando"
	EstadoEntregado  EstadoSync = "entregado"
	EstadoFallido    EstadoSync = "fallido"
)

// Destinos conocidos para los eventos de sincronización
const (
	DestinoFastAPI  = "fastapi"
	DestinoRabbitMQ = "rabbitmq"
)

var (
	// ErrEventoNoEncontrado se devuelve cuando el evento no existe o no admite la operación
	ErrEventoNoEncontrado = errors.New("evento de sincronización no encontrado")
	// ErrSyncRechazado marca un fallo permanente: reintentar no tiene sentido
	ErrSyncRechazado = errors.New("sincronización rechazada por el destino")
	// ErrReclamoVencido indica que el lease expiró y otro worker tomó el evento
	ErrReclamoVencido = errors.New("el evento ya no pertenece a este worker")
)

// ParseEstadoSync valida un estado recibido como texto
func ParseEstadoSync(s string) (EstadoSync, error) {
	switch e := EstadoSync(s); e {
	case EstadoPendiente, EstadoProcesando, EstadoEntregado, EstadoFallido:
		return e, nil
	default:
		return "", fmt.Errorf("estado de sincronización inválido: %q", s)
	}
}

// PersonaPayload son los datos que viajan al destino externo (sin el ID local)
type PersonaPayload struct {
	Nombre    string  `json:"nombre"`
	Apellido  string  `json:"apellido"`
	Email     string  `json:"email"`
	Telefono  *string `json:"telefono"`
	Direccion *string `json:"direccion"`
}

// NewPersonaPayload extrae de la persona los campos sincronizables
func NewPersonaPayload(p *Persona) PersonaPayload {
	return PersonaPayload{
		Nombre:    p.Nombre,
		Apellido:  p.Apellido,
		Email:     p.Email,
		Telefono:  p.Telefono,
		Direccion: p.Direccion,
	}
}

// EventoSync es una intención de sincronización guardada en el outbox
type EventoSync struct {
	ID             int64           `json:"id"`
	EventID        string          `json:"eventId"`
	Destino        string          `json:"destino"`
	Operacion      OperacionSync   `json:"operacion"`
	PersonaID      int             `json:"personaId"`
	Payload        json.RawMessage `json:"payload"`
	Intentos       int             `json:"intentos"`
	Estado         EstadoSync      `json:"estado"`
	UltimoError    *string         `json:"ultimoError,omitempty"`
	ProximoIntento time.Time       `json:"proximoIntento"`
	CreadoEn       time.Time       `json:"creadoEn"`
	ActualizadoEn  time.Time       `json:"actualizadoEn"`
}

// NewEventoSync crea un evento pendiente para la persona y el destino indicados
func NewEventoSync(destino string, op OperacionSync, p *Persona, ahora time.Time) (*EventoSync, error) {
	payload := json.RawMessage(`{}`)
	if op != OperacionEliminar {
		data, err := json.Marshal(NewPersonaPayload(p))
		if err != nil {
			return nil, fmt.Errorf("error al serializar persona: %w", err)
		}
		payload = data
	}

	return &EventoSync{
		EventID:        uuid.NewString(),
		Destino:        destino,
		Operacion:      op,
		PersonaID:      p.ID,
		Payload:        payload,
		Estado:         EstadoPendiente,
		ProximoIntento: ahora,
	}, nil
}

// PersonaPayload decodifica el payload del evento
func (e EventoSync) PersonaPayload() (PersonaPayload, error) {
	var p PersonaPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("payload inválido en evento %s: %w", e.EventID, err)
	}
	return p, nil
}

// OutboxRepository define las operaciones sobre el outbox de sincronización
type OutboxRepository interface {
	Encolar(ctx context.Context, evento *EventoSync) error
	// ReclamarPendientes marca como procesando hasta limite eventos vencidos.
	// El lease es el tiempo tras el cual otro worker puede volver a reclamarlos.
	// Un evento no se reclama mientras haya otro anterior sin entregar para la
	// misma persona y destino.
	ReclamarPendientes(ctx context.Context, ahora time.Time, lease time.Duration, limite int) ([]EventoSync, error)
	// Las marcas reciben el evento tal como se reclamó. Si el lease ya fue
	// renovado por otro worker devuelven ErrReclamoVencido y no tocan la fila.
	MarcarEntregado(ctx context.Context, ev EventoSync) error
	MarcarReintento(ctx context.Context, ev EventoSync, intentos int, proximo time.Time, ultimoError string) error
	MarcarFallido(ctx context.Context, ev EventoSync, intentos int, ultimoError string) error
	Listar(ctx context.Context, estado EstadoSync, limite int) ([]EventoSync, error)
	Reintentar(ctx context.Context, id int64) error
}
