package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fieldline/internal/domain"
)

func (r Repo) InsertJobRecurrenceTx(ctx context.Context, tx *sql.Tx, rec domain.JobRecurrence) error {
	var daysJSON any
	if len(rec.DaysOfWeek) > 0 {
		b, err := json.Marshal(rec.DaysOfWeek)
		if err != nil {
			return fmt.Errorf("marshal days of week: %w", err)
		}
		daysJSON = string(b)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO job_recurrences(id,tenant_id,contact_id,service_id,frequency,interval,count,until_date,days_of_week_json,start_time,end_time,timezone,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.TenantID, nullableStringPtr(rec.ContactID), nullableStringPtr(rec.ServiceID), rec.Frequency, rec.Interval,
		nullableIntPtr(rec.Count), nullableStringPtr(rec.UntilDate), daysJSON, rec.StartTime, rec.EndTime,
		nullable(rec.Timezone), rec.CreatedAt)
	return err
}

func (r Repo) GetJobRecurrence(ctx context.Context, tenantID, id string) (domain.JobRecurrence, error) {
	var rec domain.JobRecurrence
	var contactID, serviceID, untilDate, daysJSON, timezone sql.NullString
	var count sql.NullInt64
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,tenant_id,contact_id,service_id,frequency,interval,count,until_date,days_of_week_json,start_time,end_time,timezone,created_at FROM job_recurrences WHERE tenant_id=? AND id=?`,
		tenantID, id).
		Scan(&rec.ID, &rec.TenantID, &contactID, &serviceID, &rec.Frequency, &rec.Interval,
			&count, &untilDate, &daysJSON, &rec.StartTime, &rec.EndTime, &timezone, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if contactID.Valid {
		rec.ContactID = &contactID.String
	}
	if serviceID.Valid {
		rec.ServiceID = &serviceID.String
	}
	if count.Valid {
		c := int(count.Int64)
		rec.Count = &c
	}
	if untilDate.Valid {
		rec.UntilDate = &untilDate.String
	}
	if daysJSON.Valid && daysJSON.String != "" {
		if err := json.Unmarshal([]byte(daysJSON.String), &rec.DaysOfWeek); err != nil {
			return rec, fmt.Errorf("decode days of week for recurrence %s: %w", id, err)
		}
	}
	if timezone.Valid {
		rec.Timezone = timezone.String
	}
	return rec, nil
}
