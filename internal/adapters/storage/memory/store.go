// Package memory holds in-memory implementations of the persistence ports.
// Nothing is persistent; this backend exists for development mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"medagent/internal/domain"
)

// Store implements every persistence port with maps behind one mutex.
type Store struct {
	mu sync.RWMutex

	cases        map[domain.CaseID]*domain.Case
	openByUser   map[domain.UserID]domain.CaseID
	interactions []*domain.Interaction
	nextInterID  int64

	nodes    []*domain.MemoryNode
	nextNode int64
	edges    []*domain.MemoryEdge
	nextEdge int64

	audits  []*domain.AuditRecord
	events  []*domain.SystemEvent
	reports []*domain.MedicalReport
	nextRep int64

	profiles    map[domain.UserID]*domain.PatientProfile
	medications []*domain.Medication
	nextMed     int64

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		cases:      make(map[domain.CaseID]*domain.Case),
		openByUser: make(map[domain.UserID]domain.CaseID),
		profiles:   make(map[domain.UserID]*domain.PatientProfile),
		failures:   make(map[string]error),
	}
}

// FailNext makes the named operation return err once. Test hook.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) takeFailure(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

// ── Cases ────────────────────────────────────────────────────────────────

func (s *Store) GetOrCreateOpenCase(ctx context.Context, userID domain.UserID, title string) (*domain.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("GetOrCreateOpenCase"); err != nil {
		return nil, err
	}
	if id, ok := s.openByUser[userID]; ok {
		return copyCase(s.cases[id]), nil
	}
	now := time.Now()
	c := &domain.Case{
		ID:        domain.CaseID(fmt.Sprintf("case-%s-%d", userID, now.UnixNano())),
		UserID:    userID,
		Title:     title,
		Status:    domain.CaseOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cases[c.ID] = c
	s.openByUser[userID] = c.ID
	return copyCase(c), nil
}

func (s *Store) GetCase(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: case %s not found", domain.ErrPersistenceFailure, id)
	}
	return copyCase(c), nil
}

func (s *Store) RaiseCaseRisk(ctx context.Context, id domain.CaseID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return fmt.Errorf("%w: case %s not found", domain.ErrPersistenceFailure, id)
	}
	if score > c.RiskScore {
		c.RiskScore = score
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (s *Store) CloseCase(ctx context.Context, id domain.CaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return fmt.Errorf("%w: case %s not found", domain.ErrPersistenceFailure, id)
	}
	c.Status = domain.CaseClosed
	c.UpdatedAt = time.Now()
	if s.openByUser[c.UserID] == id {
		delete(s.openByUser, c.UserID)
	}
	return nil
}

// ── Interactions ─────────────────────────────────────────────────────────

func (s *Store) AppendInteraction(ctx context.Context, in *domain.Interaction) (domain.InteractionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("AppendInteraction"); err != nil {
		return 0, err
	}
	s.nextInterID++
	cp := *in
	cp.ID = domain.InteractionID(s.nextInterID)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.interactions = append(s.interactions, &cp)
	return cp.ID, nil
}

func (s *Store) ListInteractionsBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Interaction
	for _, in := range s.interactions {
		if in.SessionID == sessionID {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListRecentInteractions(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []*domain.Interaction
	for i := len(s.interactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.interactions[i].UserID == userID {
			cp := *s.interactions[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ResolveReview(ctx context.Context, id domain.InteractionID, status domain.ReviewStatus, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.interactions {
		if in.ID == id {
			in.ReviewStatus = status
			in.ReviewerComment = comment
			return nil
		}
	}
	return fmt.Errorf("%w: interaction %d not found", domain.ErrPersistenceFailure, id)
}

// ── Memory graph ─────────────────────────────────────────────────────────

func (s *Store) AddNode(ctx context.Context, node *domain.MemoryNode) (domain.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("AddNode"); err != nil {
		return 0, err
	}
	s.nextNode++
	cp := *node
	cp.ID = domain.NodeID(s.nextNode)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.nodes = append(s.nodes, &cp)
	return cp.ID, nil
}

func (s *Store) AddEdge(ctx context.Context, edge *domain.MemoryEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEdge++
	cp := *edge
	cp.ID = s.nextEdge
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.edges = append(s.edges, &cp)
	return nil
}

func (s *Store) RecentNodes(ctx context.Context, userID domain.UserID, limit int) ([]*domain.MemoryNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 15
	}
	var out []*domain.MemoryNode
	for i := len(s.nodes) - 1; i >= 0 && len(out) < limit; i-- {
		if s.nodes[i].UserID == userID {
			cp := *s.nodes[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) FindCaseNode(ctx context.Context, userID domain.UserID, caseID domain.CaseID) (*domain.MemoryNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.nodes) - 1; i >= 0; i-- {
		n := s.nodes[i]
		if n.UserID != userID || n.Type != domain.NodeCase {
			continue
		}
		for _, v := range n.Meta {
			if strings.Contains(v, string(caseID)) {
				cp := *n
				return &cp, nil
			}
		}
	}
	return nil, nil
}

// ── Audit and system log ─────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, rec *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("AppendAudit"); err != nil {
		return err
	}
	cp := *rec
	cp.ID = int64(len(s.audits) + 1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.audits = append(s.audits, &cp)
	return nil
}

func (s *Store) AppendSystemEvent(ctx context.Context, ev *domain.SystemEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	cp.ID = int64(len(s.events) + 1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.events = append(s.events, &cp)
	return nil
}

// Audits returns a snapshot of the audit log. Test hook.
func (s *Store) Audits() []*domain.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.AuditRecord, len(s.audits))
	copy(out, s.audits)
	return out
}

// Events returns a snapshot of the system log. Test hook.
func (s *Store) Events() []*domain.SystemEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.SystemEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ── Reports ──────────────────────────────────────────────────────────────

func (s *Store) SaveReport(ctx context.Context, r *domain.MedicalReport) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("SaveReport"); err != nil {
		return 0, err
	}
	s.nextRep++
	cp := *r
	cp.ID = s.nextRep
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.reports = append(s.reports, &cp)
	return cp.ID, nil
}

func (s *Store) NextVersion(ctx context.Context, patientID domain.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := 0
	for _, r := range s.reports {
		if r.PatientID == patientID && r.Version > latest {
			latest = r.Version
		}
	}
	return latest + 1, nil
}

func (s *Store) ListReportsByPatient(ctx context.Context, patientID domain.UserID) ([]*domain.MedicalReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.MedicalReport
	for _, r := range s.reports {
		if r.PatientID == patientID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// ── Profiles ─────────────────────────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, id domain.UserID) (*domain.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *domain.PatientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	now := time.Now()
	if existing, ok := s.profiles[p.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.profiles[p.ID] = &cp
	return nil
}

// ── Medications ──────────────────────────────────────────────────────────

func (s *Store) AddMedication(ctx context.Context, m *domain.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMed++
	cp := *m
	cp.ID = s.nextMed
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.medications = append(s.medications, &cp)
	return nil
}

func (s *Store) ActiveMedications(ctx context.Context, userID domain.UserID) ([]*domain.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Medication
	for _, m := range s.medications {
		if m.UserID == userID && m.Active {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func copyCase(c *domain.Case) *domain.Case {
	cp := *c
	return &cp
}
