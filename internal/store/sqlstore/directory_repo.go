package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"estatehub/internal/domain"
)

// DirectoryRepo reads the users, properties and projects owned by other subsystems.
type DirectoryRepo struct {
	c conn
}

var _ domain.Directory = (*DirectoryRepo)(nil)

func (r *DirectoryRepo) GetProperty(ctx context.Context, id int64) (*domain.Property, error) {
	var p domain.Property
	err := r.c.queryRow(ctx, `
		SELECT id, owner_id, title FROM properties WHERE id = ?
	`, id).Scan(&p.ID, &p.OwnerID, &p.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("property not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return &p, nil
}

func (r *DirectoryRepo) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	err := r.c.queryRow(ctx, `
		SELECT id, owner_id, title FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.OwnerID, &p.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (r *DirectoryRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.c.queryRow(ctx, `
		SELECT id, display_name, email, role FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.DisplayName, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
