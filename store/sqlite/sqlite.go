/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements workflow.Store and workflow.Directory on SQLite. The same
  schema works on PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  workflow.Store:     Leave requests with conditional update
  workflow.Directory: Requester profiles

KEY TABLES:
  leave_requests:   One row per request, version column for CAS
  approval_records: One row per (request, role name)
  requesters:       Normalized profiles written by the import collaborator

CONDITIONAL UPDATE:
  Update runs inside one SQL transaction:
    UPDATE leave_requests SET ..., version = version + 1
     WHERE id = ? AND version = ?
  Zero rows affected means another writer got there first and the
  transaction is rolled back with ErrConcurrentModification. The
  request row and its records therefore always change together.

LEGACY MIRRORS:
  With WithLegacyMirror, approval_records also carries rows under the
  legacy names ("director", "ao") mirroring the canonical row, for older
  readers of the same database. Rows are folded back onto canonical roles
  when loaded, so databases written before the rename load unchanged.
  Stored flows are canonicalized the same way and the status is
  recomputed from the folded records.

CONCURRENCY:
  A ":memory:" database is private to its connection, so the pool is
  capped at one connection for it. Rows are always drained before the
  next statement is issued.

USAGE:
  store, err := sqlite.New("./data/outpass.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - workflow/store.go: Interface definitions
  - workflow/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/outpass-engine/workflow"
)

// Store implements the workflow storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	roles  *workflow.RoleTable
	mirror bool
}

// Option configures a Store.
type Option func(*Store)

// WithRoleTable sets the table used to fold record keys. Defaults to
// workflow.DefaultRoleTable.
func WithRoleTable(t *workflow.RoleTable) Option {
	return func(s *Store) { s.roles = t }
}

// WithLegacyMirror toggles writing alias rows next to canonical ones.
func WithLegacyMirror(on bool) Option {
	return func(s *Store) { s.mirror = on }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, roles: workflow.DefaultRoleTable()}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		requester_json TEXT NOT NULL,
		father_json TEXT NOT NULL,
		mother_json TEXT NOT NULL,
		from_at TEXT NOT NULL,
		to_at TEXT NOT NULL,
		out_time TEXT NOT NULL,
		in_time TEXT NOT NULL,
		destination TEXT NOT NULL,
		purpose TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		leave_category TEXT NOT NULL DEFAULT '',
		flow_json TEXT NOT NULL,
		status TEXT NOT NULL,
		supervisor_id TEXT NOT NULL DEFAULT '',
		supervisor_name TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		checked_out INTEGER NOT NULL DEFAULT 0,
		check_out_json TEXT,
		used INTEGER NOT NULL DEFAULT 0,
		check_in_json TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_requester
		ON leave_requests(requester_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_gate
		ON leave_requests(status, used);

	CREATE TABLE IF NOT EXISTS approval_records (
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		decided_at TEXT,
		approver_id TEXT,
		approver_name TEXT,
		comments TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (request_id, role)
	);

	-- Pending and history views filter on the role's slot status
	CREATE INDEX IF NOT EXISTS idx_approval_records_role_status
		ON approval_records(role, status);

	CREATE TABLE IF NOT EXISTS requesters (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		prn TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		programme TEXT NOT NULL DEFAULT '',
		branch TEXT NOT NULL DEFAULT '',
		residence_name TEXT,
		supervisor_id TEXT NOT NULL DEFAULT '',
		supervisor_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// LEAVE REQUESTS (workflow.Store interface)
// =============================================================================

// Create inserts a new request and its records at version 1.
func (s *Store) Create(ctx context.Context, req *workflow.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := encodeRequest(req)
	if err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, requester_id, requester_json, father_json, mother_json, from_at, to_at,
		 out_time, in_time, destination, purpose, leave_type, leave_category, flow_json,
		 status, supervisor_id, supervisor_name, institution, checked_out, check_out_json,
		 used, check_in_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		req.ID, req.RequesterID, row.requester, row.father, row.mother,
		formatTime(req.Window.From), formatTime(req.Window.To),
		req.Window.OutTime, req.Window.InTime, req.Destination, req.Purpose,
		req.LeaveType, req.LeaveCategory, row.flow,
		req.Status, row.supervisorID, row.supervisorName, req.Requester.Institution,
		req.CheckedOut, row.checkOut, req.Used, row.checkIn,
		formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("request %s: %w", req.ID, workflow.ErrDuplicateRequest)
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	if err := s.writeRecords(ctx, sqlTx, req.ID, req.Records); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	req.Version = 1
	return nil
}

// Update replaces the request and its records if version still matches.
func (s *Store) Update(ctx context.Context, req *workflow.LeaveRequest, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := encodeRequest(req)
	if err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE leave_requests SET
			status = ?, checked_out = ?, check_out_json = ?, used = ?, check_in_json = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		req.Status, req.CheckedOut, row.checkOut, req.Used, row.checkIn,
		formatTime(req.UpdatedAt), req.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n == 0 {
		var exists int
		err := sqlTx.QueryRowContext(ctx, "SELECT COUNT(*) FROM leave_requests WHERE id = ?", req.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check request: %w", err)
		}
		if exists == 0 {
			return &workflow.NotFoundError{Kind: "request", ID: string(req.ID)}
		}
		return fmt.Errorf("request %s expected version %d: %w", req.ID, expectedVersion, workflow.ErrConcurrentModification)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM approval_records WHERE request_id = ?", req.ID); err != nil {
		return fmt.Errorf("failed to replace records: %w", err)
	}
	if err := s.writeRecords(ctx, sqlTx, req.ID, req.Records); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	req.Version = expectedVersion + 1
	return nil
}

func (s *Store) writeRecords(ctx context.Context, db execer, id workflow.RequestID, records workflow.Records) error {
	for name, rec := range workflow.LegacyView(s.roles, records, s.mirror) {
		var decidedAt sql.NullString
		if rec.Timestamp != nil {
			decidedAt = sql.NullString{String: formatTime(*rec.Timestamp), Valid: true}
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO approval_records
			(request_id, role, status, decided_at, approver_id, approver_name, comments)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, name, rec.Decision, decidedAt, nullString(rec.ApproverID), nullString(rec.ApproverName), rec.Comments)
		if err != nil {
			return fmt.Errorf("failed to write %s record: %w", name, err)
		}
	}
	return nil
}

const requestColumns = `id, requester_id, requester_json, father_json, mother_json, from_at, to_at,
	out_time, in_time, destination, purpose, leave_type, leave_category, flow_json,
	status, checked_out, check_out_json, used, check_in_json, version, created_at, updated_at`

// Get returns the request or a *workflow.NotFoundError.
func (s *Store) Get(ctx context.Context, id workflow.RequestID) (*workflow.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryRequests(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, &workflow.NotFoundError{Kind: "request", ID: string(id)}
	}
	return reqs[0], nil
}

// Query translates the filter to SQL. Slot filters match the slot under any
// of its names, so results are re-checked against the folded records and the
// limit is applied afterwards.
func (s *Store) Query(ctx context.Context, f workflow.Filter) ([]*workflow.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.RequesterID != "" {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.Slot != "" {
		names, err := s.roles.Expand(string(f.Slot))
		if err != nil {
			return nil, err
		}
		clause := "EXISTS (SELECT 1 FROM approval_records ar WHERE ar.request_id = leave_requests.id AND ar.role IN (" + placeholders(len(names)) + ")"
		for _, n := range names {
			args = append(args, n)
		}
		if len(f.SlotDecisions) > 0 {
			clause += " AND ar.status IN (" + placeholders(len(f.SlotDecisions)) + ")"
			for _, d := range f.SlotDecisions {
				args = append(args, d)
			}
		}
		where = append(where, clause+")")
	}
	if f.SupervisorID != "" || f.SupervisorName != "" {
		where = append(where, `((supervisor_id <> '' AND supervisor_id = ?)
			OR (supervisor_id = '' AND (supervisor_name = '' OR lower(trim(supervisor_name)) = lower(trim(?)))))`)
		args = append(args, f.SupervisorID, f.SupervisorName)
	}
	if f.Institution != "" {
		where = append(where, "(trim(institution) = '' OR lower(trim(institution)) = lower(trim(?)))")
		args = append(args, f.Institution)
	}
	if f.CheckedOut != nil {
		where = append(where, "checked_out = ?")
		args = append(args, *f.CheckedOut)
	}
	if f.Used != nil {
		where = append(where, "used = ?")
		args = append(args, *f.Used)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}

	query := "SELECT " + requestColumns + " FROM leave_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	reqs, err := s.queryRequests(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	out := reqs[:0]
	for _, req := range reqs {
		if !f.Matches(req) {
			continue
		}
		out = append(out, req)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*workflow.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var (
		reqs []*workflow.LeaveRequest
		ids  []any
	)
	for rows.Next() {
		req, err := s.scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		reqs = append(reqs, req)
		ids = append(ids, req.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(reqs) == 0 {
		return nil, nil
	}
	records, err := s.loadRecords(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		req.Records = records[req.ID]
		if req.Records == nil {
			req.Records = workflow.Records{}
		}
		req.Status = workflow.ComputeStatus(req.Flow, req.Records)
	}
	return reqs, nil
}

func (s *Store) loadRecords(ctx context.Context, ids []any) (map[workflow.RequestID]workflow.Records, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, role, status, decided_at, approver_id, approver_name, comments
		FROM approval_records WHERE request_id IN (`+placeholders(len(ids))+`)`, ids...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raw := make(map[workflow.RequestID]map[string]workflow.ApprovalRecord)
	for rows.Next() {
		var (
			id                     workflow.RequestID
			name, status, comments string
			decidedAt              sql.NullString
			approverID, approver   sql.NullString
		)
		if err := rows.Scan(&id, &name, &status, &decidedAt, &approverID, &approver, &comments); err != nil {
			return nil, err
		}
		rec := workflow.ApprovalRecord{
			Decision:     workflow.Decision(status),
			ApproverID:   approverID.String,
			ApproverName: approver.String,
			Comments:     comments,
		}
		if decidedAt.Valid {
			t, err := parseTime(decidedAt.String)
			if err != nil {
				return nil, fmt.Errorf("request %s %s record: %w", id, name, err)
			}
			rec.Timestamp = &t
		}
		if raw[id] == nil {
			raw[id] = make(map[string]workflow.ApprovalRecord)
		}
		raw[id][name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[workflow.RequestID]workflow.Records, len(raw))
	for id, byName := range raw {
		recs, err := workflow.CanonicalRecords(s.roles, byName)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", id, err)
		}
		out[id] = recs
	}
	return out, nil
}

func (s *Store) scanRequest(rows *sql.Rows) (*workflow.LeaveRequest, error) {
	var (
		req                                   workflow.LeaveRequest
		requesterJSON, fatherJSON, motherJSON string
		fromAt, toAt, flowJSON                string
		checkOutJSON, checkInJSON             sql.NullString
		createdAt, updatedAt                  string
		flow                                  []string
	)
	err := rows.Scan(
		&req.ID, &req.RequesterID, &requesterJSON, &fatherJSON, &motherJSON, &fromAt, &toAt,
		&req.Window.OutTime, &req.Window.InTime, &req.Destination, &req.Purpose,
		&req.LeaveType, &req.LeaveCategory, &flowJSON,
		&req.Status, &req.CheckedOut, &checkOutJSON, &req.Used, &checkInJSON,
		&req.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(requesterJSON), &req.Requester); err != nil {
		return nil, fmt.Errorf("request %s requester: %w", req.ID, err)
	}
	if err := json.Unmarshal([]byte(fatherJSON), &req.Father); err != nil {
		return nil, fmt.Errorf("request %s father: %w", req.ID, err)
	}
	if err := json.Unmarshal([]byte(motherJSON), &req.Mother); err != nil {
		return nil, fmt.Errorf("request %s mother: %w", req.ID, err)
	}
	if err := json.Unmarshal([]byte(flowJSON), &flow); err != nil {
		return nil, fmt.Errorf("request %s flow: %w", req.ID, err)
	}
	if req.Flow, err = s.roles.CanonicalFlow(flow); err != nil {
		return nil, fmt.Errorf("request %s flow: %w", req.ID, err)
	}
	req.CheckOut, err = decodeStamp(checkOutJSON)
	if err != nil {
		return nil, fmt.Errorf("request %s check-out: %w", req.ID, err)
	}
	req.CheckIn, err = decodeStamp(checkInJSON)
	if err != nil {
		return nil, fmt.Errorf("request %s check-in: %w", req.ID, err)
	}

	for _, col := range []struct {
		dst *time.Time
		raw string
	}{
		{&req.Window.From, fromAt},
		{&req.Window.To, toAt},
		{&req.CreatedAt, createdAt},
		{&req.UpdatedAt, updatedAt},
	} {
		if *col.dst, err = parseTime(col.raw); err != nil {
			return nil, fmt.Errorf("request %s: %w", req.ID, err)
		}
	}
	return &req, nil
}

type encodedRequest struct {
	requester, father, mother, flow string
	checkOut, checkIn               sql.NullString
	supervisorID, supervisorName    string
}

func encodeRequest(req *workflow.LeaveRequest) (encodedRequest, error) {
	var (
		row encodedRequest
		err error
	)
	if row.requester, err = encodeJSON(req.Requester); err != nil {
		return row, err
	}
	if row.father, err = encodeJSON(req.Father); err != nil {
		return row, err
	}
	if row.mother, err = encodeJSON(req.Mother); err != nil {
		return row, err
	}
	if row.flow, err = encodeJSON(req.Flow); err != nil {
		return row, err
	}
	if row.checkOut, err = encodeStamp(req.CheckOut); err != nil {
		return row, err
	}
	if row.checkIn, err = encodeStamp(req.CheckIn); err != nil {
		return row, err
	}
	if res := req.Requester.Residence; res != nil {
		row.supervisorID = res.SupervisorID
		row.supervisorName = res.SupervisorName
	}
	return row, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode: %w", err)
	}
	return string(b), nil
}

func encodeStamp(st *workflow.Stamp) (sql.NullString, error) {
	if st == nil {
		return sql.NullString{}, nil
	}
	s, err := encodeJSON(st)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func decodeStamp(ns sql.NullString) (*workflow.Stamp, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var st workflow.Stamp
	if err := json.Unmarshal([]byte(ns.String), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// =============================================================================
// REQUESTERS (workflow.Directory interface)
// =============================================================================

// SaveRequester inserts or replaces a profile.
func (s *Store) SaveRequester(ctx context.Context, r workflow.Requester) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var residence sql.NullString
	var supervisorID, supervisorName string
	if r.Residence != nil {
		residence = sql.NullString{String: r.Residence.Name, Valid: true}
		supervisorID = r.Residence.SupervisorID
		supervisorName = r.Residence.SupervisorName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO requesters
		(id, name, email, phone, prn, institution, programme, branch,
		 residence_name, supervisor_id, supervisor_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Name, r.Email, r.Phone, r.PRN, r.Institution, r.Programme, r.Branch,
		residence, supervisorID, supervisorName, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to save requester: %w", err)
	}
	return nil
}

const requesterColumns = `id, name, email, phone, prn, institution, programme, branch,
	residence_name, supervisor_id, supervisor_name`

// GetRequester returns a profile or a *workflow.NotFoundError.
func (s *Store) GetRequester(ctx context.Context, id string) (*workflow.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRequester(s.db.QueryRowContext(ctx,
		"SELECT "+requesterColumns+" FROM requesters WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &workflow.NotFoundError{Kind: "requester", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRequesters returns all profiles ordered by name.
func (s *Store) ListRequesters(ctx context.Context) ([]workflow.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+requesterColumns+" FROM requesters ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workflow.Requester
	for rows.Next() {
		r, err := scanRequester(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequester(row scanner) (*workflow.Requester, error) {
	var (
		r                            workflow.Requester
		residence                    sql.NullString
		supervisorID, supervisorName string
	)
	err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Phone, &r.PRN, &r.Institution,
		&r.Programme, &r.Branch, &residence, &supervisorID, &supervisorName)
	if err != nil {
		return nil, err
	}
	if residence.Valid {
		r.Residence = &workflow.ResidenceUnit{
			Name:           residence.String,
			SupervisorID:   supervisorID,
			SupervisorName: supervisorName,
		}
	}
	return &r, nil
}

// Helper functions

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
