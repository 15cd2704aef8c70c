package http

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// fakePersonaService guarda en memoria y respeta la unicidad del email
type fakePersonaService struct {
	mu       sync.Mutex
	personas map[int]domain.Persona
	nextID   int
	err      error
}

func newFakeService() *fakePersonaService {
	return &fakePersonaService{personas: map[int]domain.Persona{}, nextID: 1}
}

func (f *fakePersonaService) GuardarPersona(ctx context.Context, p *domain.Persona) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if strings.TrimSpace(p.Nombre) == "" {
		return &domain.ErrorValidacion{Errores: []string{"el nombre es requerido"}}
	}
	for id, other := range f.personas {
		if id != p.ID && strings.EqualFold(other.Email, p.Email) {
			return domain.ErrEmailDuplicado
		}
	}
	if p.EsNueva() {
		p.ID = f.nextID
		f.nextID++
	} else if _, ok := f.personas[p.ID]; !ok {
		return domain.ErrPersonaNoEncontrada
	}
	f.personas[p.ID] = *p
	return nil
}

func (f *fakePersonaService) CrearPersona(ctx context.Context, p *domain.Persona) error {
	p.ID = 0
	return f.GuardarPersona(ctx, p)
}

func (f *fakePersonaService) ActualizarPersona(ctx context.Context, id int, cambios domain.PersonaUpdate) (*domain.Persona, error) {
	p, err := f.ObtenerPorID(ctx, id)
	if err != nil {
		return nil, err
	}
	cambios.Aplicar(p)
	if err := f.GuardarPersona(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *fakePersonaService) EliminarPersona(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if _, ok := f.personas[id]; !ok {
		return domain.ErrPersonaNoEncontrada
	}
	delete(f.personas, id)
	return nil
}

func (f *fakePersonaService) ObtenerPorID(ctx context.Context, id int) (*domain.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.personas[id]
	if !ok {
		return nil, domain.ErrPersonaNoEncontrada
	}
	return &p, nil
}

func (f *fakePersonaService) ObtenerTodos(ctx context.Context) ([]domain.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []domain.Persona{}
	for id := 1; id < f.nextID; id++ {
		if p, ok := f.personas[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePersonaService) ObtenerPorEmail(ctx context.Context, email string) (*domain.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.personas {
		if strings.EqualFold(p.Email, email) {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrPersonaNoEncontrada
}

type fakeSyncAdmin struct {
	estado string
	limite int
}

func (f *fakeSyncAdmin) ListarEventos(ctx context.Context, estado string, limite int) ([]domain.EventoSync, error) {
	f.estado, f.limite = estado, limite
	if estado == "perdido" {
		return nil, &domain.ErrorValidacion{Errores: []string{"estado de sincronización inválido"}}
	}
	return []domain.EventoSync{{ID: 1, EventID: "ev-1", Estado: domain.EstadoFallido}}, nil
}

func (f *fakeSyncAdmin) ReintentarEvento(ctx context.Context, id int64) error {
	if id != 1 {
		return domain.ErrEventoNoEncontrado
	}
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

var errBaseCaida = errors.New("base de datos caída")

// newTestApp arma la aplicación como en main, con dependencias falsas
func newTestApp(svc PersonaService, admin SyncAdmin, db Pinger) *fiber.App {
	log := logger.Nop()
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(log),
		Views:        NewViews(),
		ViewsLayout:  ViewsLayout,
	})
	app.Use(RequestLogger(log))

	app.Get("/health", NewHealthHandler(db).Health)
	app.Get("/metrics", MetricsHandler())

	api := app.Group("/api")
	NewPersonaHandler(svc).RegisterRoutes(api)
	NewSyncHandler(admin).RegisterRoutes(api)

	NewWebHandler(svc, session.New(), log).RegisterRoutes(app)
	return app
}
