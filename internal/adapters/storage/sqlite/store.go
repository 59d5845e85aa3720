// Package sqlite persists cases, interactions, memory graph, reports and
// audit rows in a single SQLite database. The driver is pure Go
// (modernc.org/sqlite), so deployments need no cgo toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"medagent/internal/domain"
)

// Store implements every persistence port on one database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies pragmas and runs
// the schema migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cases (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'open',
			risk_score INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_one_open
			ON cases(user_id) WHERE status = 'open';

		CREATE TABLE IF NOT EXISTS interactions (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id             TEXT NOT NULL,
			session_id          TEXT NOT NULL,
			case_id             TEXT,
			input_encrypted     TEXT NOT NULL,
			diagnosis_encrypted TEXT NOT NULL,
			response_encrypted  TEXT NOT NULL,
			language            TEXT NOT NULL DEFAULT 'en',
			critical_alert      INTEGER NOT NULL DEFAULT 0,
			safety_status       TEXT NOT NULL DEFAULT 'safe',
			requires_review     INTEGER NOT NULL DEFAULT 0,
			review_status       TEXT NOT NULL DEFAULT 'pending',
			reviewer_comment    TEXT NOT NULL DEFAULT '',
			created_at          TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id);
		CREATE INDEX IF NOT EXISTS idx_interactions_user    ON interactions(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS memory_nodes (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id           TEXT NOT NULL,
			node_type         TEXT NOT NULL,
			content_encrypted TEXT NOT NULL,
			meta_json         TEXT NOT NULL DEFAULT '{}',
			created_at        TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_memory_nodes_user ON memory_nodes(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS memory_edges (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			source_id  INTEGER NOT NULL,
			target_id  INTEGER NOT NULL,
			relation   TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (source_id) REFERENCES memory_nodes(id),
			FOREIGN KEY (target_id) REFERENCES memory_nodes(id)
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			actor_id   TEXT NOT NULL,
			role       TEXT NOT NULL,
			action     TEXT NOT NULL,
			target     TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS system_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			level      TEXT NOT NULL,
			component  TEXT NOT NULL,
			message    TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS reports (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id        TEXT NOT NULL,
			session_id        TEXT NOT NULL,
			content_encrypted TEXT NOT NULL,
			language          TEXT NOT NULL DEFAULT 'en',
			version           INTEGER NOT NULL,
			status            TEXT NOT NULL,
			created_at        TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_reports_patient ON reports(patient_id, version DESC);

		CREATE TABLE IF NOT EXISTS profiles (
			id                TEXT PRIMARY KEY,
			name_encrypted    TEXT NOT NULL DEFAULT '',
			age               INTEGER NOT NULL DEFAULT 0,
			gender            TEXT NOT NULL DEFAULT '',
			history_encrypted TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS medications (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id             TEXT NOT NULL,
			name_encrypted      TEXT NOT NULL,
			dosage_encrypted    TEXT NOT NULL DEFAULT '',
			frequency_encrypted TEXT NOT NULL DEFAULT '',
			active              INTEGER NOT NULL DEFAULT 1,
			created_at          TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_medications_user ON medications(user_id, active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ── Cases ────────────────────────────────────────────────────────────────

// GetOrCreateOpenCase returns the user's open case, creating one when none
// exists. The partial unique index on cases(user_id) guarantees at most one
// open case per user; a concurrent insert losing the race re-reads the
// winner's row.
func (s *Store) GetOrCreateOpenCase(ctx context.Context, userID domain.UserID, title string) (*domain.Case, error) {
	if c, err := s.openCase(ctx, userID); err == nil {
		return c, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	id := newCaseID(userID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (id, user_id, title) VALUES (?, ?, ?)`,
		id, string(userID), title,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return s.openCaseOrErr(ctx, userID)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return s.GetCase(ctx, id)
}

func (s *Store) openCase(ctx context.Context, userID domain.UserID) (*domain.Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, status, risk_score, created_at, updated_at
		 FROM cases WHERE user_id = ? AND status = 'open'`,
		string(userID),
	)
	return scanCase(row)
}

func (s *Store) openCaseOrErr(ctx context.Context, userID domain.UserID) (*domain.Case, error) {
	c, err := s.openCase(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return c, nil
}

func (s *Store) GetCase(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, status, risk_score, created_at, updated_at
		 FROM cases WHERE id = ?`,
		string(id),
	)
	c, err := scanCase(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return c, nil
}

// RaiseCaseRisk lifts the risk score to score. The score never goes down.
func (s *Store) RaiseCaseRisk(ctx context.Context, id domain.CaseID, score int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cases SET risk_score = MAX(risk_score, ?), updated_at = datetime('now') WHERE id = ?`,
		score, string(id),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Store) CloseCase(ctx context.Context, id domain.CaseID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = 'closed', updated_at = datetime('now') WHERE id = ?`,
		string(id),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// ── Interactions ─────────────────────────────────────────────────────────

func (s *Store) AppendInteraction(ctx context.Context, in *domain.Interaction) (domain.InteractionID, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions
		 (user_id, session_id, case_id, input_encrypted, diagnosis_encrypted, response_encrypted,
		  language, critical_alert, safety_status, requires_review, review_status, reviewer_comment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(in.UserID), string(in.SessionID), string(in.CaseID),
		in.InputEncrypted, in.DiagnosisEncrypted, in.ResponseEncrypted,
		string(in.Language), boolToInt(in.CriticalAlert), string(in.SafetyStatus),
		boolToInt(in.RequiresReview), string(in.ReviewStatus), in.ReviewerComment,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return domain.InteractionID(id), nil
}

func (s *Store) ListInteractionsBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Interaction, error) {
	return s.listInteractions(ctx,
		`SELECT `+interactionCols+` FROM interactions WHERE session_id = ? ORDER BY id ASC`,
		string(sessionID),
	)
}

func (s *Store) ListRecentInteractions(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.listInteractions(ctx,
		`SELECT `+interactionCols+` FROM interactions WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		string(userID), limit,
	)
}

// ResolveReview updates only the reviewer annotation fields.
func (s *Store) ResolveReview(ctx context.Context, id domain.InteractionID, status domain.ReviewStatus, comment string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET review_status = ?, reviewer_comment = ? WHERE id = ?`,
		string(status), comment, int64(id),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: interaction %d not found", domain.ErrPersistenceFailure, id)
	}
	return nil
}

const interactionCols = `id, user_id, session_id, COALESCE(case_id, ''), input_encrypted,
	diagnosis_encrypted, response_encrypted, language, critical_alert, safety_status,
	requires_review, review_status, reviewer_comment, created_at`

func (s *Store) listInteractions(ctx context.Context, query string, args ...any) ([]*domain.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []*domain.Interaction
	for rows.Next() {
		var (
			in                        domain.Interaction
			critical, review          int
			userID, sessionID, caseID string
			created                   string
		)
		if err := rows.Scan(
			&in.ID, &userID, &sessionID, &caseID, &in.InputEncrypted,
			&in.DiagnosisEncrypted, &in.ResponseEncrypted, &in.Language, &critical, &in.SafetyStatus,
			&review, &in.ReviewStatus, &in.ReviewerComment, &created,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		in.UserID = domain.UserID(userID)
		in.SessionID = domain.SessionID(sessionID)
		in.CaseID = domain.CaseID(caseID)
		in.CriticalAlert = critical != 0
		in.RequiresReview = review != 0
		in.CreatedAt = parseTime(created)
		out = append(out, &in)
	}
	return out, rows.Err()
}

// ── Memory graph ─────────────────────────────────────────────────────────

func (s *Store) AddNode(ctx context.Context, node *domain.MemoryNode) (domain.NodeID, error) {
	meta := "{}"
	if len(node.Meta) > 0 {
		raw, err := json.Marshal(node.Meta)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		meta = string(raw)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_nodes (user_id, node_type, content_encrypted, meta_json) VALUES (?, ?, ?, ?)`,
		string(node.UserID), string(node.Type), node.ContentEncrypted, meta,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return domain.NodeID(id), nil
}

func (s *Store) AddEdge(ctx context.Context, edge *domain.MemoryEdge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_edges (user_id, source_id, target_id, relation) VALUES (?, ?, ?, ?)`,
		string(edge.UserID), int64(edge.SourceID), int64(edge.TargetID), string(edge.Relation),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Store) RecentNodes(ctx context.Context, userID domain.UserID, limit int) ([]*domain.MemoryNode, error) {
	if limit <= 0 {
		limit = 15
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, node_type, content_encrypted, meta_json, created_at
		 FROM memory_nodes WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		string(userID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []*domain.MemoryNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// FindCaseNode returns the newest Case node whose metadata references caseID,
// or nil when the graph has none.
func (s *Store) FindCaseNode(ctx context.Context, userID domain.UserID, caseID domain.CaseID) (*domain.MemoryNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, node_type, content_encrypted, meta_json, created_at
		 FROM memory_nodes
		 WHERE user_id = ? AND node_type = ? AND meta_json LIKE ?
		 ORDER BY id DESC LIMIT 1`,
		string(userID), string(domain.NodeCase), "%"+string(caseID)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanNode(rows)
}

func scanNode(rows *sql.Rows) (*domain.MemoryNode, error) {
	var (
		n               domain.MemoryNode
		userID, created string
		metaJSON        string
	)
	if err := rows.Scan(&n.ID, &userID, &n.Type, &n.ContentEncrypted, &metaJSON, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	n.UserID = domain.UserID(userID)
	n.CreatedAt = parseTime(created)
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &n.Meta)
	}
	return &n, nil
}

// ── Audit and system log ─────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, rec *domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor_id, role, action, target, status) VALUES (?, ?, ?, ?, ?)`,
		rec.ActorID, rec.Role, rec.Action, rec.Target, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Store) AppendSystemEvent(ctx context.Context, ev *domain.SystemEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_log (level, component, message, session_id) VALUES (?, ?, ?, ?)`,
		ev.Level, ev.Component, ev.Message, string(ev.SessionID),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// ── Reports ──────────────────────────────────────────────────────────────

func (s *Store) SaveReport(ctx context.Context, r *domain.MedicalReport) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (patient_id, session_id, content_encrypted, language, version, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.PatientID), string(r.SessionID), r.ContentEncrypted,
		string(r.Language), r.Version, string(r.Status),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return id, nil
}

func (s *Store) NextVersion(ctx context.Context, patientID domain.UserID) (int, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM reports WHERE patient_id = ?`,
		string(patientID),
	).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return int(latest.Int64) + 1, nil
}

func (s *Store) ListReportsByPatient(ctx context.Context, patientID domain.UserID) ([]*domain.MedicalReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, session_id, content_encrypted, language, version, status, created_at
		 FROM reports WHERE patient_id = ? ORDER BY version DESC`,
		string(patientID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []*domain.MedicalReport
	for rows.Next() {
		var (
			r                  domain.MedicalReport
			patient, sess, created string
		)
		if err := rows.Scan(&r.ID, &patient, &sess, &r.ContentEncrypted, &r.Language, &r.Version, &r.Status, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		r.PatientID = domain.UserID(patient)
		r.SessionID = domain.SessionID(sess)
		r.CreatedAt = parseTime(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ── Profiles ─────────────────────────────────────────────────────────────

// GetProfile returns nil without error when the user has no profile.
func (s *Store) GetProfile(ctx context.Context, id domain.UserID) (*domain.PatientProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name_encrypted, age, gender, history_encrypted, created_at, updated_at
		 FROM profiles WHERE id = ?`,
		string(id),
	)
	var (
		p                 domain.PatientProfile
		uid               string
		created, updated  string
	)
	err := row.Scan(&uid, &p.NameEncrypted, &p.Age, &p.Gender, &p.HistoryEncrypted, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	p.ID = domain.UserID(uid)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *domain.PatientProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name_encrypted, age, gender, history_encrypted)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name_encrypted    = excluded.name_encrypted,
			age               = excluded.age,
			gender            = excluded.gender,
			history_encrypted = excluded.history_encrypted,
			updated_at        = datetime('now')`,
		string(p.ID), p.NameEncrypted, p.Age, p.Gender, p.HistoryEncrypted,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// ── Medications ──────────────────────────────────────────────────────────

func (s *Store) AddMedication(ctx context.Context, m *domain.Medication) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO medications (user_id, name_encrypted, dosage_encrypted, frequency_encrypted, active)
		 VALUES (?, ?, ?, ?, ?)`,
		string(m.UserID), m.NameEncrypted, m.DosageEncrypted, m.FrequencyEncrypted, boolToInt(m.Active),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Store) ActiveMedications(ctx context.Context, userID domain.UserID) ([]*domain.Medication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name_encrypted, dosage_encrypted, frequency_encrypted, active, created_at
		 FROM medications WHERE user_id = ? AND active = 1 ORDER BY id ASC`,
		string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []*domain.Medication
	for rows.Next() {
		var (
			m            domain.Medication
			uid, created string
			active       int
		)
		if err := rows.Scan(&m.ID, &uid, &m.NameEncrypted, &m.DosageEncrypted, &m.FrequencyEncrypted, &active, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		m.UserID = domain.UserID(uid)
		m.Active = active != 0
		m.CreatedAt = parseTime(created)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ── Helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var (
		c                     domain.Case
		id, uid               string
		created, updated      string
	)
	if err := row.Scan(&id, &uid, &c.Title, &c.Status, &c.RiskScore, &created, &updated); err != nil {
		return nil, err
	}
	c.ID = domain.CaseID(id)
	c.UserID = domain.UserID(uid)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func newCaseID(userID domain.UserID) domain.CaseID {
	return domain.CaseID(fmt.Sprintf("case-%s-%d", userID, time.Now().UnixNano()))
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
