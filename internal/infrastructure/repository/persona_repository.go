package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/lib/pq"
)

// uniqueViolation es el SQLSTATE de PostgreSQL para violaciones de índice único
const uniqueViolation = "23505"

// dbtx lo cumplen tanto *sql.DB como *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type personaRepository struct {
	db dbtx
}

// NewPersonaRepository crea una nueva instancia del repositorio de personas
func NewPersonaRepository(db *sql.DB) domain.PersonaRepository {
	return &personaRepository{db: db}
}

const personaColumns = `persona_id, nombre, apellido, email, telefono, direccion`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPersona(row rowScanner) (*domain.Persona, error) {
	persona := &domain.Persona{}
	var telefono, direccion sql.NullString

	err := row.Scan(
		&persona.ID,
		&persona.Nombre,
		&persona.Apellido,
		&persona.Email,
		&telefono,
		&direccion,
	)
	if err != nil {
		return nil, err
	}

	// Convertir sql.NullString a *string
	if telefono.Valid {
		persona.Telefono = &telefono.String
	}
	if direccion.Valid {
		persona.Direccion = &direccion.String
	}

	return persona, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Save inserta la persona si no tiene ID; si lo tiene, actualiza todos sus campos
func (r *personaRepository) Save(ctx context.Context, persona *domain.Persona) error {
	if persona.EsNueva() {
		return r.insert(ctx, persona)
	}
	return r.update(ctx, persona)
}

func (r *personaRepository) insert(ctx context.Context, persona *domain.Persona) error {
	query := `
		INSERT INTO persona (nombre, apellido, email, telefono, direccion)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING persona_id
	`

	err := r.db.QueryRowContext(ctx, query,
		persona.Nombre,
		persona.Apellido,
		persona.Email,
		nullString(persona.Telefono),
		nullString(persona.Direccion),
	).Scan(&persona.ID)

	if isUniqueViolation(err) {
		return domain.ErrEmailDuplicado
	}
	if err != nil {
		return fmt.Errorf("error al crear persona: %w", err)
	}

	return nil
}

func (r *personaRepository) update(ctx context.Context, persona *domain.Persona) error {
	query := `
		UPDATE persona
		SET
			nombre = $1,
			apellido = $2,
			email = $3,
			telefono = $4,
			direccion = $5
		WHERE persona_id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		persona.Nombre,
		persona.Apellido,
		persona.Email,
		nullString(persona.Telefono),
		nullString(persona.Direccion),
		persona.ID,
	)
	if isUniqueViolation(err) {
		return domain.ErrEmailDuplicado
	}
	if err != nil {
		return fmt.Errorf("error al actualizar persona: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error al verificar actualización: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrPersonaNoEncontrada
	}

	return nil
}

// FindByID obtiene una persona por su ID
func (r *personaRepository) FindByID(ctx context.Context, id int) (*domain.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM persona WHERE persona_id = $1`

	persona, err := scanPersona(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error al obtener persona: %w", err)
	}

	return persona, nil
}

// FindAll lista todas las personas ordenadas por ID
func (r *personaRepository) FindAll(ctx context.Context) ([]domain.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM persona ORDER BY persona_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error al listar personas: %w", err)
	}
	defer rows.Close()

	personas := []domain.Persona{}
	for rows.Next() {
		persona, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("error al leer persona: %w", err)
		}
		personas = append(personas, *persona)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error al recorrer personas: %w", err)
	}

	return personas, nil
}

// DeleteByID elimina una persona por su ID
func (r *personaRepository) DeleteByID(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM persona WHERE persona_id = $1`, id)
	if err != nil {
		return fmt.Errorf("error al eliminar persona: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error al verificar eliminación: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrPersonaNoEncontrada
	}

	return nil
}

// FindByEmail busca una persona por email sin distinguir mayúsculas
func (r *personaRepository) FindByEmail(ctx context.Context, email string) (*domain.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM persona WHERE lower(email) = lower($1)`

	persona, err := scanPersona(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil // No existe, devolver nil sin error
	}
	if err != nil {
		return nil, fmt.Errorf("error al buscar persona por email: %w", err)
	}

	return persona, nil
}

// ExistsByEmail indica si algún registro usa ya el email
func (r *personaRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM persona WHERE lower(email) = lower($1))`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error al verificar email: %w", err)
	}
	return exists, nil
}
