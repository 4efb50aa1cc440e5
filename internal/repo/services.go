package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fieldline/internal/domain"
)

func (r Repo) InsertService(ctx context.Context, s domain.Service) error {
	return insertService(ctx, r.DB, s)
}

func (r Repo) InsertServiceTx(ctx context.Context, tx *sql.Tx, s domain.Service) error {
	return insertService(ctx, tx, s)
}

func insertService(ctx context.Context, q querier, s domain.Service) error {
	availability, err := json.Marshal(s.Availability)
	if err != nil {
		return fmt.Errorf("marshal availability: %w", err)
	}
	booking, err := json.Marshal(s.Booking)
	if err != nil {
		return fmt.Errorf("marshal booking settings: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO services(id,tenant_id,name,duration_minutes,active,availability_json,booking_json,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.TenantID, s.Name, s.DurationMinutes, boolToInt(s.Active), string(availability), string(booking), s.CreatedAt)
	return err
}

// GetService looks a service up by id alone: the public booking path only
// has the service's shared link, not a tenant credential.
func (r Repo) GetService(ctx context.Context, id string) (domain.Service, error) {
	return getService(ctx, r.DB, id)
}

func (r Repo) GetServiceTx(ctx context.Context, tx *sql.Tx, id string) (domain.Service, error) {
	return getService(ctx, tx, id)
}

func getService(ctx context.Context, q querier, id string) (domain.Service, error) {
	var s domain.Service
	var active int
	var availability, booking string
	err := q.QueryRowContext(ctx,
		`SELECT id,tenant_id,name,duration_minutes,active,availability_json,booking_json,created_at FROM services WHERE id=?`, id).
		Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &active, &availability, &booking, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Active = active != 0
	if err := json.Unmarshal([]byte(availability), &s.Availability); err != nil {
		return s, fmt.Errorf("decode availability for service %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(booking), &s.Booking); err != nil {
		return s, fmt.Errorf("decode booking settings for service %s: %w", id, err)
	}
	return s, nil
}

func (r Repo) ListServices(ctx context.Context, tenantID string) ([]domain.Service, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id FROM services WHERE tenant_id=? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		s, err := getService(ctx, r.DB, id)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) SetServiceActive(ctx context.Context, tenantID, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE services SET active=? WHERE tenant_id=? AND id=?`,
		boolToInt(active), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
