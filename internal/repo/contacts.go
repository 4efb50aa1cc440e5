package repo

import (
	"context"
	"database/sql"

	"fieldline/internal/domain"
)

func scanContact(row *sql.Row) (domain.Contact, error) {
	var c domain.Contact
	var phone sql.NullString
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &phone, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if phone.Valid {
		c.Phone = &phone.String
	}
	return c, nil
}

func (r Repo) InsertContactTx(ctx context.Context, tx *sql.Tx, c domain.Contact) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO contacts(id,tenant_id,name,email,phone,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.TenantID, c.Name, c.Email, nullableStringPtr(c.Phone), c.CreatedAt)
	return err
}

func (r Repo) GetContact(ctx context.Context, tenantID, id string) (domain.Contact, error) {
	return scanContact(r.DB.QueryRowContext(ctx,
		`SELECT id,tenant_id,name,email,phone,created_at FROM contacts WHERE tenant_id=? AND id=?`, tenantID, id))
}

func (r Repo) GetContactTx(ctx context.Context, tx *sql.Tx, tenantID, id string) (domain.Contact, error) {
	return scanContact(tx.QueryRowContext(ctx,
		`SELECT id,tenant_id,name,email,phone,created_at FROM contacts WHERE tenant_id=? AND id=?`, tenantID, id))
}

// GetContactByEmailTx resolves the (tenant, email) upsert key used by the
// public booking path.
func (r Repo) GetContactByEmailTx(ctx context.Context, tx *sql.Tx, tenantID, email string) (domain.Contact, error) {
	return scanContact(tx.QueryRowContext(ctx,
		`SELECT id,tenant_id,name,email,phone,created_at FROM contacts WHERE tenant_id=? AND email=?`, tenantID, email))
}

func (r Repo) ListContacts(ctx context.Context, tenantID string) ([]domain.Contact, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,tenant_id,name,email,phone,created_at FROM contacts WHERE tenant_id=? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Contact
	for rows.Next() {
		var c domain.Contact
		var phone sql.NullString
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		if phone.Valid {
			c.Phone = &phone.String
		}
		res = append(res, c)
	}
	return res, nil
}
