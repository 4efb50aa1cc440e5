package repo

import (
	"context"
	"database/sql"
	"strings"

	"fieldline/internal/domain"
)

func (r Repo) LatestEvents(ctx context.Context, tenantID string, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"tenant_id=?"}
	args := []any{tenantID}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,tenant_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var tenant, entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &tenant, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if tenant.Valid {
			e.TenantID = tenant.String
		}
		if entity.Valid {
			e.EntityID = entity.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
