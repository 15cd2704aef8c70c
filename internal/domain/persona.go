package domain

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrPersonaNoEncontrada se devuelve cuando no existe una persona con el ID pedido
	ErrPersonaNoEncontrada = errors.New("persona no encontrada")
	// ErrEmailDuplicado se devuelve cuando el email ya pertenece a otra persona
	ErrEmailDuplicado = errors.New("el email ya está registrado")
)

// Persona representa un contacto de la agenda
type Persona struct {
	ID        int     `json:"id"`
	Nombre    string  `json:"nombre"`
	Apellido  string  `json:"apellido"`
	Email     string  `json:"email"`
	Telefono  *string `json:"telefono"`  // Puntero para permitir NULL
	Direccion *string `json:"direccion"` // Puntero para permitir NULL
}

// EsNueva indica si la persona todavía no fue persistida
func (p *Persona) EsNueva() bool {
	return p.ID == 0
}

// PersonaUpdate es un cambio parcial sobre una persona existente.
// Un campo nil no se modifica.
type PersonaUpdate struct {
	Nombre    *string
	Apellido  *string
	Email     *string
	Telefono  *string
	Direccion *string
}

// Aplicar copia los campos informados sobre p. El ID nunca cambia.
// Telefono y Direccion vacíos se guardan como NULL.
func (u PersonaUpdate) Aplicar(p *Persona) {
	if u.Nombre != nil {
		p.Nombre = *u.Nombre
	}
	if u.Apellido != nil {
		p.Apellido = *u.Apellido
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.Telefono != nil {
		p.Telefono = vacioANil(*u.Telefono)
	}
	if u.Direccion != nil {
		p.Direccion = vacioANil(*u.Direccion)
	}
}

func vacioANil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ErrorValidacion agrupa los errores de validación de una persona
type ErrorValidacion struct {
	Errores []string
}

func (e *ErrorValidacion) Error() string {
	return "datos inválidos: " + strings.Join(e.Errores, "; ")
}

// PersonaRepository define las operaciones con personas
type PersonaRepository interface {
	// Save inserta la persona si es nueva y la actualiza en caso contrario
	Save(ctx context.Context, persona *Persona) error
	// FindByID devuelve nil sin error si la persona no existe
	FindByID(ctx context.Context, id int) (*Persona, error)
	FindAll(ctx context.Context) ([]Persona, error)
	DeleteByID(ctx context.Context, id int) error
	// FindByEmail devuelve nil sin error si no hay coincidencia
	FindByEmail(ctx context.Context, email string) (*Persona, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Repositorios agrupa los repositorios ligados a una misma transacción
type Repositorios struct {
	Personas PersonaRepository
	Outbox   OutboxRepository
}

// UnitOfWork ejecuta fn dentro de una transacción; confirma si fn devuelve nil
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositorios) error) error
}
