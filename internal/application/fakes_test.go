package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
)

// memStore simula la base de datos: personas, outbox y transacciones con rollback
type memStore struct {
	mu         sync.Mutex
	personas   map[int]domain.Persona
	nextID     int
	eventos    []domain.EventoSync
	encolarErr error
	commits    int
	rollbacks  int
}

func newMemStore() *memStore {
	return &memStore{personas: map[int]domain.Persona{}, nextID: 1}
}

func (m *memStore) Do(ctx context.Context, fn func(repos domain.Repositorios) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	personas := make(map[int]domain.Persona, len(m.personas))
	for k, v := range m.personas {
		personas[k] = v
	}
	eventos := append([]domain.EventoSync(nil), m.eventos...)
	nextID := m.nextID

	if err := fn(domain.Repositorios{Personas: memPersonas{m}, Outbox: &fakeOutbox{store: m}}); err != nil {
		m.personas, m.eventos, m.nextID = personas, eventos, nextID
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

// repo fuera de transacción
func (m *memStore) repo() domain.PersonaRepository { return lockedPersonas{m} }

type memPersonas struct{ m *memStore }

func (r memPersonas) Save(ctx context.Context, p *domain.Persona) error {
	for id, other := range r.m.personas {
		if id != p.ID && strings.EqualFold(other.Email, p.Email) {
			return domain.ErrEmailDuplicado
		}
	}
	if p.EsNueva() {
		p.ID = r.m.nextID
		r.m.nextID++
	} else if _, ok := r.m.personas[p.ID]; !ok {
		return domain.ErrPersonaNoEncontrada
	}
	r.m.personas[p.ID] = *p
	return nil
}

func (r memPersonas) FindByID(ctx context.Context, id int) (*domain.Persona, error) {
	p, ok := r.m.personas[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPersonas) FindAll(ctx context.Context) ([]domain.Persona, error) {
	out := []domain.Persona{}
	for id := 1; id < r.m.nextID; id++ {
		if p, ok := r.m.personas[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memPersonas) DeleteByID(ctx context.Context, id int) error {
	if _, ok := r.m.personas[id]; !ok {
		return domain.ErrPersonaNoEncontrada
	}
	delete(r.m.personas, id)
	return nil
}

func (r memPersonas) FindByEmail(ctx context.Context, email string) (*domain.Persona, error) {
	for _, p := range r.m.personas {
		if strings.EqualFold(p.Email, email) {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r memPersonas) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	p, _ := r.FindByEmail(ctx, email)
	return p != nil, nil
}

// lockedPersonas toma el mutex en cada llamada
type lockedPersonas struct{ m *memStore }

func (r lockedPersonas) Save(ctx context.Context, p *domain.Persona) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return memPersonas(r).Save(ctx, p)
}

func (r lockedPersonas) FindByID(ctx context.Context, id int) (*domain.Persona, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return memPersonas(r).FindByID(ctx, id)
}

func (r lockedPersonas) FindAll(ctx context.Context) ([]domain.Persona, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return memPersonas(r).FindAll(ctx)
}

func (r lockedPersonas) DeleteByID(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return memPersonas(r).DeleteByID(ctx, id)
}

func (r lockedPersonas) FindByEmail(ctx context.Context, email string) (*domain.Persona, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return memPersonas(r).FindByEmail(ctx, email)
}

func (r lockedPersonas) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return memPersonas(r).ExistsByEmail(ctx, email)
}

type reintento struct {
	id       int64
	intentos int
	proximo  time.Time
	msg      string
}

type fallo struct {
	id       int64
	intentos int
	msg      string
}

// fakeOutbox sirve tanto dentro de la transacción (store != nil) como para el dispatcher
type fakeOutbox struct {
	store *memStore

	pendientes  []domain.EventoSync
	reclamarErr error
	vencido     bool
	lease       time.Duration
	limite      int

	entregados  []int64
	reintentos  []reintento
	fallidos    []fallo
	listados    domain.EstadoSync
	listLimite  int
	reintentado []int64
}

func (f *fakeOutbox) Encolar(ctx context.Context, ev *domain.EventoSync) error {
	if f.store.encolarErr != nil {
		return f.store.encolarErr
	}
	ev.ID = int64(len(f.store.eventos) + 1)
	f.store.eventos = append(f.store.eventos, *ev)
	return nil
}

func (f *fakeOutbox) ReclamarPendientes(ctx context.Context, ahora time.Time, lease time.Duration, limite int) ([]domain.EventoSync, error) {
	f.lease, f.limite = lease, limite
	return f.pendientes, f.reclamarErr
}

func (f *fakeOutbox) MarcarEntregado(ctx context.Context, ev domain.EventoSync) error {
	if f.vencido {
		return domain.ErrReclamoVencido
	}
	f.entregados = append(f.entregados, ev.ID)
	return nil
}

func (f *fakeOutbox) MarcarReintento(ctx context.Context, ev domain.EventoSync, intentos int, proximo time.Time, ultimoError string) error {
	if f.vencido {
		return domain.ErrReclamoVencido
	}
	f.reintentos = append(f.reintentos, reintento{ev.ID, intentos, proximo, ultimoError})
	return nil
}

func (f *fakeOutbox) MarcarFallido(ctx context.Context, ev domain.EventoSync, intentos int, ultimoError string) error {
	if f.vencido {
		return domain.ErrReclamoVencido
	}
	f.fallidos = append(f.fallidos, fallo{ev.ID, intentos, ultimoError})
	return nil
}

func (f *fakeOutbox) Listar(ctx context.Context, estado domain.EstadoSync, limite int) ([]domain.EventoSync, error) {
	f.listados, f.listLimite = estado, limite
	return []domain.EventoSync{}, nil
}

func (f *fakeOutbox) Reintentar(ctx context.Context, id int64) error {
	if id != 1 {
		return domain.ErrEventoNoEncontrado
	}
	f.reintentado = append(f.reintentado, id)
	return nil
}

type fakeInline struct {
	creadas, actualizadas, eliminadas []int
}

func (f *fakeInline) Crear(ctx context.Context, p *domain.Persona) {
	f.creadas = append(f.creadas, p.ID)
}

func (f *fakeInline) Actualizar(ctx context.Context, p *domain.Persona) {
	f.actualizadas = append(f.actualizadas, p.ID)
}

func (f *fakeInline) Eliminar(ctx context.Context, id int) {
	f.eliminadas = append(f.eliminadas, id)
}

type fakeDeliverer struct {
	errs  []error
	calls int
}

func (f *fakeDeliverer) Entregar(ctx context.Context, ev domain.EventoSync) error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeNotifier struct {
	err      error
	recibido []domain.EventoSync
}

func (f *fakeNotifier) NotificarFallo(ctx context.Context, ev domain.EventoSync) error {
	f.recibido = append(f.recibido, ev)
	return f.err
}

func strPtr(s string) *string { return &s }
