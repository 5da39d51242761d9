package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iliyamo/area-reservation/internal/model"
)

// AreaCatalog resolves the bookable areas.  Areas are managed outside this
// service, so the catalog is read only.  GetArea returns model.ErrNotFound
// for unknown ids.
type AreaCatalog interface {
	GetArea(ctx context.Context, id uint64) (model.Area, error)
}

// AreaRepo reads areas from the MySQL areas table.
type AreaRepo struct {
	db    *sql.DB // db is the underlying database connection
	retry RetryPolicy
}

// NewAreaRepo constructs an AreaRepo with the given DB handle.
func NewAreaRepo(db *sql.DB, retry RetryPolicy) *AreaRepo {
	return &AreaRepo{db: db, retry: retry}
}

// GetArea retrieves an area by its ID regardless of its active flag; the
// service decides what an inactive area means.
func (r *AreaRepo) GetArea(ctx context.Context, id uint64) (model.Area, error) {
	const op = "repository.mysql.GetArea"
	const q = `SELECT id, name, min_capacity, max_capacity, is_active FROM areas WHERE id = ?`
	var a model.Area
	err := r.retry.run(ctx, op, isTransientMySQL, func(ctx context.Context) error {
		err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Name, &a.MinCapacity, &a.MaxCapacity, &a.IsActive)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	})
	return a, err
}

// GetArea makes PostgresStore an AreaCatalog backed by its own areas table.
func (s *PostgresStore) GetArea(ctx context.Context, id uint64) (model.Area, error) {
	const op = "repository.postgres.GetArea"
	const q = `SELECT id, name, min_capacity, max_capacity, is_active FROM areas WHERE id = $1`
	var (
		a     model.Area
		rawID int64
	)
	err := s.retry.run(ctx, op, isTransientPostgres, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx, q, int64(id)).Scan(&rawID, &a.Name, &a.MinCapacity, &a.MaxCapacity, &a.IsActive)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	})
	a.ID = uint64(rawID)
	return a, err
}

// StaticCatalog is a fixed in-memory catalog used with the memory store
// and in tests.  It is read-only after construction.
type StaticCatalog struct {
	areas map[uint64]model.Area
}

func NewStaticCatalog(areas ...model.Area) *StaticCatalog {
	c := &StaticCatalog{areas: make(map[uint64]model.Area, len(areas))}
	for _, a := range areas {
		c.areas[a.ID] = a
	}
	return c
}

func (c *StaticCatalog) GetArea(ctx context.Context, id uint64) (model.Area, error) {
	if err := ctx.Err(); err != nil {
		return model.Area{}, err
	}
	a, ok := c.areas[id]
	if !ok {
		return model.Area{}, model.ErrNotFound
	}
	return a, nil
}
