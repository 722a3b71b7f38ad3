package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GoatGit/semibot/internal/types"
)

// timeLayout is the fixed-width UTC timestamp format used in every table.
// Constant width keeps lexicographic order equal to chronological order,
// which the list queries rely on for the since filter.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Store is the durability boundary: event log, approvals, rule snapshots.
// All failures propagate; callers treat them as fatal for the operation.
type Store struct {
	db *sqlx.DB
	q  *queries
}

// Open connects to the database named by dbURL (sqlite:// or postgres://)
// and loads the named queries. It does not run migrations; call MigrateUp.
func Open(dbURL string) (*Store, error) {
	db, err := open(dbURL)
	if err != nil {
		return nil, err
	}
	q, err := loadQueries(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, q: q}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// MigrateUp applies all pending schema migrations.
func (s *Store) MigrateUp() error {
	return migrateUp(s.db)
}

// MigrateStatus reports applied and pending migrations.
func (s *Store) MigrateStatus() ([]MigrationStatus, error) {
	return migrateStatus(s.db)
}

// eventRow is the events table shape.
type eventRow struct {
	EventID        string `db:"event_id"`
	EventType      string `db:"event_type"`
	Source         string `db:"source"`
	Subject        string `db:"subject"`
	Payload        string `db:"payload"`
	RiskHint       string `db:"risk_hint"`
	IdempotencyKey string `db:"idempotency_key"`
	CreatedAt      string `db:"created_at"`
}

func (r *eventRow) toEvent() (*types.Event, error) {
	ev := &types.Event{
		EventID:        r.EventID,
		EventType:      r.EventType,
		Source:         r.Source,
		Subject:        r.Subject,
		RiskHint:       r.RiskHint,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      parseTime(r.CreatedAt),
	}
	if r.Payload != "" {
		if err := json.Unmarshal([]byte(r.Payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("event %s payload: %w", r.EventID, err)
		}
	}
	return ev, nil
}

// InsertEvent appends one event to the log. The insert is idempotent on
// event_id; re-inserting an already-stored event is a no-op.
func (s *Store) InsertEvent(ctx context.Context, ev *types.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for event %s: %w", ev.EventID, err)
	}
	if ev.Payload == nil {
		payload = []byte("{}")
	}

	_, err = s.q.exec(ctx, "insert-event",
		ev.EventID, ev.EventType, ev.Source, ev.Subject,
		string(payload), ev.RiskHint, ev.IdempotencyKey,
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}
	return nil
}

// GetEvent loads one event by id, or types.ErrEventNotFound.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*types.Event, error) {
	var row eventRow
	err := s.q.get(ctx, "get-event", &row, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, types.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return row.toEvent()
}

// ListEvents returns up to limit events newest-first. eventType filters by
// exact type when non-empty; since drops events created before it when
// non-zero.
func (s *Store) ListEvents(ctx context.Context, limit int, eventType string, since time.Time) ([]types.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	sinceArg := ""
	if !since.IsZero() {
		sinceArg = formatTime(since)
	}

	var rows []eventRow
	err := s.q.selectAll(ctx, "list-events", &rows,
		eventType, eventType, sinceArg, sinceArg, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]types.Event, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}

// CountEvents returns the total size of the event log.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.q.get(ctx, "count-events", &count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// approvalRow is the approvals table shape.
type approvalRow struct {
	ApprovalID string         `db:"approval_id"`
	RuleID     string         `db:"rule_id"`
	EventID    string         `db:"event_id"`
	RiskLevel  string         `db:"risk_level"`
	Context    string         `db:"context"`
	Status     string         `db:"status"`
	CreatedAt  string         `db:"created_at"`
	ResolvedAt sql.NullString `db:"resolved_at"`
}

func (r *approvalRow) toApproval() (*types.ApprovalRequest, error) {
	a := &types.ApprovalRequest{
		ApprovalID: r.ApprovalID,
		RuleID:     r.RuleID,
		EventID:    r.EventID,
		RiskLevel:  r.RiskLevel,
		Status:     types.ApprovalStatus(r.Status),
		CreatedAt:  parseTime(r.CreatedAt),
		Context:    map[string]any{},
	}
	if r.Context != "" {
		if err := json.Unmarshal([]byte(r.Context), &a.Context); err != nil {
			return nil, fmt.Errorf("approval %s context: %w", r.ApprovalID, err)
		}
	}
	if a.Context == nil {
		a.Context = map[string]any{}
	}
	if r.ResolvedAt.Valid {
		ts := parseTime(r.ResolvedAt.String)
		a.ResolvedAt = &ts
	}
	return a, nil
}

// InsertApproval persists a new approval request in pending state.
func (s *Store) InsertApproval(ctx context.Context, a *types.ApprovalRequest) error {
	contextJSON, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Errorf("marshal context for approval %s: %w", a.ApprovalID, err)
	}
	if a.Context == nil {
		contextJSON = []byte("{}")
	}

	_, err = s.q.exec(ctx, "insert-approval",
		a.ApprovalID, a.RuleID, a.EventID, a.RiskLevel,
		string(contextJSON), string(a.Status), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert approval %s: %w", a.ApprovalID, err)
	}
	return nil
}

// GetApproval loads one approval request by id, or types.ErrApprovalNotFound.
func (s *Store) GetApproval(ctx context.Context, approvalID string) (*types.ApprovalRequest, error) {
	var row approvalRow
	err := s.q.get(ctx, "get-approval", &row, approvalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %s: %w", approvalID, types.ErrApprovalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval %s: %w", approvalID, err)
	}
	return row.toApproval()
}

// UpdateApprovalStatus transitions a pending approval to status. It returns
// types.ErrApprovalResolved when the request exists but already left the
// pending state, and types.ErrApprovalNotFound for unknown ids.
func (s *Store) UpdateApprovalStatus(ctx context.Context, approvalID string, status types.ApprovalStatus, resolvedAt time.Time) error {
	res, err := s.q.exec(ctx, "update-approval-status",
		string(status), formatTime(resolvedAt), approvalID)
	if err != nil {
		return fmt.Errorf("update approval %s: %w", approvalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update approval %s: %w", approvalID, err)
	}
	if affected == 0 {
		// Distinguish unknown id from double resolution.
		if _, err := s.GetApproval(ctx, approvalID); err != nil {
			return err
		}
		return fmt.Errorf("approval %s: %w", approvalID, types.ErrApprovalResolved)
	}
	return nil
}

// ListPendingApprovals returns all unresolved approval requests, oldest
// first (approval ids are time-ordered).
func (s *Store) ListPendingApprovals(ctx context.Context) ([]types.ApprovalRequest, error) {
	var rows []approvalRow
	if err := s.q.selectAll(ctx, "list-pending-approvals", &rows); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}

	approvals := make([]types.ApprovalRequest, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toApproval()
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *a)
	}
	return approvals, nil
}

// CountPendingApprovals returns the number of unresolved approval requests.
func (s *Store) CountPendingApprovals(ctx context.Context) (int64, error) {
	var count int64
	if err := s.q.get(ctx, "count-pending-approvals", &count); err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return count, nil
}

// RuleSnapshot records one successful rule load for audit.
type RuleSnapshot struct {
	SnapshotID  int64  `db:"snapshot_id"`
	Source      string `db:"source"`
	Fingerprint string `db:"fingerprint"`
	RuleCount   int    `db:"rule_count"`
	Rules       string `db:"rules"` // JSON array of the loaded rules
	LoadedAt    string `db:"loaded_at"`
}

// InsertRuleSnapshot appends a rule load audit record.
func (s *Store) InsertRuleSnapshot(ctx context.Context, source, fingerprint string, rules []types.Rule) error {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rule snapshot: %w", err)
	}
	_, err = s.q.exec(ctx, "insert-rule-snapshot",
		source, fingerprint, len(rules), string(rulesJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert rule snapshot: %w", err)
	}
	return nil
}

// LatestRuleSnapshot returns the most recent rule load audit record, or nil
// when no load has been recorded.
func (s *Store) LatestRuleSnapshot(ctx context.Context) (*RuleSnapshot, error) {
	var snap RuleSnapshot
	err := s.q.get(ctx, "latest-rule-snapshot", &snap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest rule snapshot: %w", err)
	}
	return &snap, nil
}
