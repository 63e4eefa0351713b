package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/scholchat/scholchat-api/internal/models"
)

// ClassRepository reads the class directory.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindDetails returns a class with its establishment name when one is linked.
func (r *ClassRepository) FindDetails(ctx context.Context, id string) (*models.ClassDetails, error) {
	const query = `SELECT c.id, c.name, c.establishment_id, e.name AS establishment_name
	FROM classes c
	LEFT JOIN establishments e ON e.id = c.establishment_id
	WHERE c.id = $1`
	var details models.ClassDetails
	if err := r.db.GetContext(ctx, &details, query, id); err != nil {
		return nil, err
	}
	return &details, nil
}
