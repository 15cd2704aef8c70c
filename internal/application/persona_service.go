package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
)

// Modos de sincronización
const (
	ModoOutbox = "outbox"
	ModoInline = "inline"
)

// InlineSync replica en el momento, sin propagar errores
type InlineSync interface {
	Crear(ctx context.Context, p *domain.Persona)
	Actualizar(ctx context.Context, p *domain.Persona)
	Eliminar(ctx context.Context, id int)
}

// SyncOptions configura cómo el servicio replica los cambios
type SyncOptions struct {
	Modo                       string
	Destinos                   []string
	SincronizarActualizaciones bool
	Inline                     InlineSync
}

type PersonaService struct {
	personaRepo domain.PersonaRepository
	uow         domain.UnitOfWork
	validator   *Validator
	sync        SyncOptions
	log         *logger.Logger
	now         func() time.Time
}

// NewPersonaService crea una nueva instancia del servicio de personas
func NewPersonaService(personaRepo domain.PersonaRepository, uow domain.UnitOfWork, sync SyncOptions, log *logger.Logger) *PersonaService {
	if sync.Modo == "" {
		sync.Modo = ModoOutbox
	}
	return &PersonaService{
		personaRepo: personaRepo,
		uow:         uow,
		validator:   &Validator{},
		sync:        sync,
		log:         log.With("component", "persona_service"),
		now:         time.Now,
	}
}

// GuardarPersona crea la persona si no tiene ID y la actualiza en caso contrario.
// La escritura local y la intención de sincronizar se confirman juntas.
func (s *PersonaService) GuardarPersona(ctx context.Context, p *domain.Persona) error {
	normalizar(p)
	if err := s.validator.ValidatePersona(p); err != nil {
		return err
	}

	nueva := p.EsNueva()
	op := domain.OperacionActualizar
	if nueva {
		op = domain.OperacionCrear
	}
	sincronizar := nueva || s.sync.SincronizarActualizaciones

	err := s.uow.Do(ctx, func(repos domain.Repositorios) error {
		if err := repos.Personas.Save(ctx, p); err != nil {
			return err
		}
		if !sincronizar {
			return nil
		}
		return s.encolar(ctx, repos.Outbox, op, p)
	})
	if err != nil {
		if nueva {
			// la transacción no se confirmó: el ID asignado no existe
			p.ID = 0
		}
		return err
	}

	if nueva {
		s.log.Infof("Persona %d creada", p.ID)
	} else {
		s.log.Infof("Persona %d actualizada", p.ID)
	}

	if sincronizar && s.sync.Modo == ModoInline && s.sync.Inline != nil {
		if nueva {
			s.sync.Inline.Crear(ctx, p)
		} else {
			s.sync.Inline.Actualizar(ctx, p)
		}
	}

	return nil
}

// CrearPersona fuerza la creación aunque el cliente envíe un ID
func (s *PersonaService) CrearPersona(ctx context.Context, p *domain.Persona) error {
	p.ID = 0
	return s.GuardarPersona(ctx, p)
}

// ActualizarPersona aplica el parche sobre la persona guardada
func (s *PersonaService) ActualizarPersona(ctx context.Context, id int, cambios domain.PersonaUpdate) (*domain.Persona, error) {
	persona, err := s.ObtenerPorID(ctx, id)
	if err != nil {
		return nil, err
	}

	cambios.Aplicar(persona)

	if err := s.GuardarPersona(ctx, persona); err != nil {
		return nil, err
	}
	return persona, nil
}

// EliminarPersona borra la persona y encola la baja en los destinos
func (s *PersonaService) EliminarPersona(ctx context.Context, id int) error {
	err := s.uow.Do(ctx, func(repos domain.Repositorios) error {
		if err := repos.Personas.DeleteByID(ctx, id); err != nil {
			return err
		}
		return s.encolar(ctx, repos.Outbox, domain.OperacionEliminar, &domain.Persona{ID: id})
	})
	if err != nil {
		return err
	}

	s.log.Infof("Persona %d eliminada", id)

	if s.sync.Modo == ModoInline && s.sync.Inline != nil {
		s.sync.Inline.Eliminar(ctx, id)
	}
	return nil
}

// ExisteEmail indica si el email ya está registrado
func (s *PersonaService) ExisteEmail(ctx context.Context, email string) (bool, error) {
	return s.personaRepo.ExistsByEmail(ctx, strings.TrimSpace(email))
}

// ObtenerPorID devuelve domain.ErrPersonaNoEncontrada si no existe
func (s *PersonaService) ObtenerPorID(ctx context.Context, id int) (*domain.Persona, error) {
	persona, err := s.personaRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if persona == nil {
		return nil, domain.ErrPersonaNoEncontrada
	}
	return persona, nil
}

// ObtenerTodos lista todas las personas
func (s *PersonaService) ObtenerTodos(ctx context.Context) ([]domain.Persona, error) {
	return s.personaRepo.FindAll(ctx)
}

// ObtenerPorEmail devuelve domain.ErrPersonaNoEncontrada si no hay coincidencia
func (s *PersonaService) ObtenerPorEmail(ctx context.Context, email string) (*domain.Persona, error) {
	persona, err := s.personaRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if persona == nil {
		return nil, domain.ErrPersonaNoEncontrada
	}
	return persona, nil
}

func (s *PersonaService) encolar(ctx context.Context, outbox domain.OutboxRepository, op domain.OperacionSync, p *domain.Persona) error {
	if s.sync.Modo != ModoOutbox {
		return nil
	}

	ahora := s.now()
	for _, destino := range s.sync.Destinos {
		ev, err := domain.NewEventoSync(destino, op, p, ahora)
		if err != nil {
			return err
		}
		if err := outbox.Encolar(ctx, ev); err != nil {
			return fmt.Errorf("error al encolar sincronización hacia %s: %w", destino, err)
		}
	}
	return nil
}

func normalizar(p *domain.Persona) {
	p.Nombre = strings.TrimSpace(p.Nombre)
	p.Apellido = strings.TrimSpace(p.Apellido)
	p.Email = strings.TrimSpace(p.Email)
	p.Telefono = recortar(p.Telefono)
	p.Direccion = recortar(p.Direccion)
}

func recortar(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
