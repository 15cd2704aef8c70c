package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Maxito7/agenda/internal/domain"
)

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork crea una unidad de trabajo sobre la base de datos
func NewUnitOfWork(db *sql.DB) domain.UnitOfWork {
	return &unitOfWork{db: db}
}

// Do ejecuta fn con repositorios ligados a una misma transacción
func (u *unitOfWork) Do(ctx context.Context, fn func(repos domain.Repositorios) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error al iniciar transacción: %w", err)
	}
	defer tx.Rollback()

	repos := domain.Repositorios{
		Personas: &personaRepository{db: tx},
		Outbox:   &outboxRepository{db: tx},
	}
	if err := fn(repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error al confirmar transacción: %w", err)
	}

	return nil
}
