package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"fieldline/internal/domain"
)

const jobColumns = `id,tenant_id,contact_id,service_id,recurrence_id,title,start_time,end_time,status,breaks_json,created_at,updated_at,archived_at`

func scanJobRow(scan func(dest ...any) error) (domain.Job, error) {
	var j domain.Job
	var contactID, serviceID, recurrenceID, startTime, endTime, breaks, archivedAt sql.NullString
	err := scan(&j.ID, &j.TenantID, &contactID, &serviceID, &recurrenceID, &j.Title,
		&startTime, &endTime, &j.Status, &breaks, &j.CreatedAt, &j.UpdatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	if contactID.Valid {
		j.ContactID = &contactID.String
	}
	if serviceID.Valid {
		j.ServiceID = &serviceID.String
	}
	if recurrenceID.Valid {
		j.RecurrenceID = &recurrenceID.String
	}
	if startTime.Valid {
		j.StartTime = &startTime.String
	}
	if endTime.Valid {
		j.EndTime = &endTime.String
	}
	if breaks.Valid {
		j.BreaksJSON = &breaks.String
	}
	if archivedAt.Valid {
		j.ArchivedAt = &archivedAt.String
	}
	return j, nil
}

func (r Repo) InsertJobTx(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs(`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.TenantID, nullableStringPtr(j.ContactID), nullableStringPtr(j.ServiceID), nullableStringPtr(j.RecurrenceID),
		j.Title, nullableStringPtr(j.StartTime), nullableStringPtr(j.EndTime), j.Status, nullableStringPtr(j.BreaksJSON),
		j.CreatedAt, j.UpdatedAt, nullableStringPtr(j.ArchivedAt))
	return err
}

func (r Repo) UpdateJobTx(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET contact_id=?, service_id=?, recurrence_id=?, title=?, start_time=?, end_time=?, status=?, breaks_json=?, updated_at=?, archived_at=? WHERE tenant_id=? AND id=?`,
		nullableStringPtr(j.ContactID), nullableStringPtr(j.ServiceID), nullableStringPtr(j.RecurrenceID),
		j.Title, nullableStringPtr(j.StartTime), nullableStringPtr(j.EndTime), j.Status, nullableStringPtr(j.BreaksJSON),
		j.UpdatedAt, nullableStringPtr(j.ArchivedAt), j.TenantID, j.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetJob(ctx context.Context, tenantID, id string) (domain.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanJobRow(row.Scan)
}

func (r Repo) GetJobTx(ctx context.Context, tx *sql.Tx, tenantID, id string) (domain.Job, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanJobRow(row.Scan)
}

type JobFilters struct {
	TenantID        string
	Status          string
	ContactID       string
	RecurrenceID    string
	From            string
	To              string
	IncludeArchived bool
	Limit           int
}

func (r Repo) ListJobs(ctx context.Context, f JobFilters) ([]domain.Job, error) {
	clauses := []string{"tenant_id=?"}
	args := []any{f.TenantID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ContactID != "" {
		clauses = append(clauses, "contact_id=?")
		args = append(args, f.ContactID)
	}
	if f.RecurrenceID != "" {
		clauses = append(clauses, "recurrence_id=?")
		args = append(args, f.RecurrenceID)
	}
	if f.From != "" {
		clauses = append(clauses, "end_time > ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "start_time < ?")
		args = append(args, f.To)
	}
	if !f.IncludeArchived {
		clauses = append(clauses, "archived_at IS NULL")
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY start_time ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// DeleteJob permanently removes a job. Archival is the soft path; this is
// the explicit permanent-delete escape hatch.
func (r Repo) DeleteJob(ctx context.Context, tenantID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM jobs WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOverlappingJobs returns the tenant's non-archived jobs in the given
// statuses whose [start,end) range intersects the candidate range. Archived
// jobs and jobs without a schedule never conflict. Times compare as RFC3339
// UTC strings, which order lexicographically.
func (r Repo) FindOverlappingJobs(ctx context.Context, tenantID string, start, end time.Time, statuses []string, excludeJobID string) ([]domain.Job, error) {
	return findOverlappingJobs(ctx, r.DB, tenantID, start, end, statuses, excludeJobID)
}

func (r Repo) FindOverlappingJobsTx(ctx context.Context, tx *sql.Tx, tenantID string, start, end time.Time, statuses []string, excludeJobID string) ([]domain.Job, error) {
	return findOverlappingJobs(ctx, tx, tenantID, start, end, statuses, excludeJobID)
}

func findOverlappingJobs(ctx context.Context, q querier, tenantID string, start, end time.Time, statuses []string, excludeJobID string) ([]domain.Job, error) {
	if len(statuses) == 0 {
		statuses = domain.ActiveJobStatuses
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []any{tenantID, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339)}
	for _, s := range statuses {
		args = append(args, s)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs
WHERE tenant_id=? AND archived_at IS NULL
AND start_time IS NOT NULL AND end_time IS NOT NULL
AND start_time < ? AND end_time > ?
AND status IN (` + placeholders + `)`
	if excludeJobID != "" {
		query += ` AND id != ?`
		args = append(args, excludeJobID)
	}
	query += ` ORDER BY start_time ASC, id ASC`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}
