package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estatehub/internal/domain"
)

type InquiryRepo struct {
	c conn
}

var _ domain.InquiryRepository = (*InquiryRepo)(nil)

const inquiryColumns = `i.id, i.property_id, i.project_id, i.inquirer_id, i.name, i.email, i.phone,
	i.message, i.status, i.conversation_id, i.created_at, i.updated_at`

func (r *InquiryRepo) CreateIfAbsent(ctx context.Context, in *domain.Inquiry) (bool, error) {
	err := r.c.queryRow(ctx, `
		INSERT INTO inquiries
			(property_id, project_id, inquirer_id, name, email, phone, message, status, conversation_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, in.PropertyID, in.ProjectID, in.InquirerID, in.Name, in.Email, in.Phone,
		in.Message, string(in.Status), in.ConversationID, in.CreatedAt, in.UpdatedAt,
	).Scan(&in.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert inquiry: %w", err)
	}
	return true, nil
}

// FindByInquirer returns the inquiry for the given target and inquirer, or nil.
func (r *InquiryRepo) FindByInquirer(ctx context.Context, propertyID, projectID *int64, inquirerID int64) (*domain.Inquiry, error) {
	var (
		query string
		arg   int64
	)
	switch {
	case propertyID != nil:
		query = `SELECT ` + inquiryColumns + ` FROM inquiries i WHERE i.property_id = ? AND i.inquirer_id = ?`
		arg = *propertyID
	case projectID != nil:
		query = `SELECT ` + inquiryColumns + ` FROM inquiries i WHERE i.project_id = ? AND i.inquirer_id = ?`
		arg = *projectID
	default:
		return nil, nil
	}
	in, err := scanInquiry(r.c.queryRow(ctx, query, arg, inquirerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find inquiry: %w", err)
	}
	return in, nil
}

func (r *InquiryRepo) GetByID(ctx context.Context, id int64) (*domain.Inquiry, error) {
	in, err := scanInquiry(r.c.queryRow(ctx, `SELECT `+inquiryColumns+` FROM inquiries i WHERE i.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("inquiry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get inquiry: %w", err)
	}
	return in, nil
}

func (r *InquiryRepo) LinkConversation(ctx context.Context, inquiryID, conversationID int64) error {
	if _, err := r.c.exec(ctx, `
		UPDATE inquiries SET conversation_id = ? WHERE id = ?
	`, conversationID, inquiryID); err != nil {
		return fmt.Errorf("link inquiry conversation: %w", err)
	}
	return nil
}

func (r *InquiryRepo) UpdateStatus(ctx context.Context, inquiryID int64, status domain.InquiryStatus, at time.Time) error {
	res, err := r.c.exec(ctx, `
		UPDATE inquiries SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), at, inquiryID)
	if err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("inquiry not found")
	}
	return nil
}

func (r *InquiryRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.c.exec(ctx, `DELETE FROM inquiries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete inquiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("inquiry not found")
	}
	return nil
}

// ListForOwner lists inquiries on properties and projects owned by ownerID, newest first.
func (r *InquiryRepo) ListForOwner(ctx context.Context, ownerID int64, f domain.InquiryFilter) ([]*domain.Inquiry, int, error) {
	where := `(p.owner_id = ? OR pr.owner_id = ?)`
	args := []any{ownerID, ownerID}
	if f.Status != nil {
		where += ` AND i.status = ?`
		args = append(args, string(*f.Status))
	}
	from := `
		FROM inquiries i
		LEFT JOIN properties p ON p.id = i.property_id
		LEFT JOIN projects pr ON pr.id = i.project_id
		WHERE ` + where

	var total int
	if err := r.c.queryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count owner inquiries: %w", err)
	}
	rows, err := r.c.query(ctx, `SELECT `+inquiryColumns+from+`
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list owner inquiries: %w", err)
	}
	items, err := scanInquiries(rows)
	return items, total, err
}

func (r *InquiryRepo) ListForInquirer(ctx context.Context, inquirerID int64, offset, limit int) ([]*domain.Inquiry, int, error) {
	var total int
	if err := r.c.queryRow(ctx, `SELECT COUNT(*) FROM inquiries WHERE inquirer_id = ?`, inquirerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sent inquiries: %w", err)
	}
	rows, err := r.c.query(ctx, `
		SELECT `+inquiryColumns+`
		FROM inquiries i
		WHERE i.inquirer_id = ?
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ? OFFSET ?
	`, inquirerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sent inquiries: %w", err)
	}
	items, err := scanInquiries(rows)
	return items, total, err
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInquiry(row rowScanner) (*domain.Inquiry, error) {
	var (
		in                                     domain.Inquiry
		propertyID, projectID, inquirerID, cID sql.NullInt64
		phone                                  sql.NullString
		status                                 string
		createdAt, updatedAt                   nullTime
	)
	if err := row.Scan(
		&in.ID, &propertyID, &projectID, &inquirerID, &in.Name, &in.Email, &phone,
		&in.Message, &status, &cID, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	in.PropertyID = nullInt64Ptr(propertyID)
	in.ProjectID = nullInt64Ptr(projectID)
	in.InquirerID = nullInt64Ptr(inquirerID)
	in.ConversationID = nullInt64Ptr(cID)
	in.Phone = nullStringPtr(phone)
	in.Status = domain.InquiryStatus(status)
	in.CreatedAt = createdAt.Time
	in.UpdatedAt = updatedAt.Time
	return &in, nil
}

func scanInquiries(rows *sql.Rows) ([]*domain.Inquiry, error) {
	defer rows.Close()
	res := make([]*domain.Inquiry, 0)
	for rows.Next() {
		in, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inquiry: %w", err)
		}
		res = append(res, in)
	}
	return res, rows.Err()
}
