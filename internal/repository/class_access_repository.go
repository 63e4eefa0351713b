package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scholchat/scholchat-api/internal/models"
)

const classAccessSelect = `SELECT a.class_id, a.user_id, a.state, a.role, u.first_name, u.last_name, u.full_name, u.email
	FROM class_access a
	JOIN users u ON u.id = a.user_id`

// ClassAccessRepository is the access registry: which users may reach which class.
type ClassAccessRepository struct {
	db *sqlx.DB
}

// NewClassAccessRepository constructs the repository.
func NewClassAccessRepository(db *sqlx.DB) *ClassAccessRepository {
	return &ClassAccessRepository{db: db}
}

// ListByClass returns every access entry of a class whatever its state.
func (r *ClassAccessRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassAccess, error) {
	query := classAccessSelect + ` WHERE a.class_id = $1 ORDER BY a.created_at ASC, a.user_id ASC`
	var entries []models.ClassAccess
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list class access: %w", err)
	}
	return entries, nil
}

// ListApproved returns only the approved access entries of a class.
func (r *ClassAccessRepository) ListApproved(ctx context.Context, classID string) ([]models.ClassAccess, error) {
	query := classAccessSelect + ` WHERE a.class_id = $1 AND a.state = $2 ORDER BY a.created_at ASC, a.user_id ASC`
	var entries []models.ClassAccess
	if err := r.db.SelectContext(ctx, &entries, query, classID, string(models.AccessStateApproved)); err != nil {
		return nil, fmt.Errorf("list approved class access: %w", err)
	}
	return entries, nil
}
