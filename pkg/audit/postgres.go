package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const insertRecordPrefix = `INSERT INTO access_audit_log (id, tenant_id, actor, action, method, route, reason, metadata, created_at) VALUES `

// PostgresSink appends records to the access_audit_log table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink panics when db is nil.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	if db == nil {
		panic("audit: db is required")
	}
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	return s.AppendBatch(ctx, []Record{rec})
}

// AppendBatch writes all records with a single multi-row insert.
func (s *PostgresSink) AppendBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(insertRecordPrefix)
	args := make([]any, 0, len(recs)*9)

	for i, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return errors.Join(ErrWriteFailed, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9)
		args = append(args, r.ID, r.TenantID, r.Actor, r.Action, r.Method, r.Route, r.Reason, meta, r.CreatedAt)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	return nil
}
