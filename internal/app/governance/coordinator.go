package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"medagent/internal/domain"
	"medagent/internal/observability"
)

const auditRetries = 3

// Coordinator ties the cipher to the durable stores. It is constructed once
// at process start and injected into every stage that touches persistence;
// there is no global instance to reach for.
type Coordinator struct {
	cipher   domain.Cipher
	cases    domain.CaseStore
	inters   domain.InteractionStore
	memory   domain.MemoryStore
	audits   domain.AuditStore
	syslog   domain.SystemLogStore
	reports  domain.ReportStore
	profiles domain.ProfileStore
	meds     domain.MedicationStore
	now      func() time.Time
}

type Stores struct {
	Cases        domain.CaseStore
	Interactions domain.InteractionStore
	Memory       domain.MemoryStore
	Audit        domain.AuditStore
	SystemLog    domain.SystemLogStore
	Reports      domain.ReportStore
	Profiles     domain.ProfileStore
	Medications  domain.MedicationStore
}

func NewCoordinator(cipher domain.Cipher, s Stores) *Coordinator {
	return &Coordinator{
		cipher:   cipher,
		cases:    s.Cases,
		inters:   s.Interactions,
		memory:   s.Memory,
		audits:   s.Audit,
		syslog:   s.SystemLog,
		reports:  s.Reports,
		profiles: s.Profiles,
		meds:     s.Medications,
		now:      time.Now,
	}
}

func (c *Coordinator) Encrypt(plaintext string) string  { return c.cipher.Encrypt(plaintext) }
func (c *Coordinator) Decrypt(ciphertext string) string { return c.cipher.Decrypt(ciphertext) }

// LogAction appends one immutable audit row. Audit writes are never dropped
// silently: failures are retried and, if they still fail, logged at the
// highest severity with the full record.
func (c *Coordinator) LogAction(ctx context.Context, actor, role, action, target, status string) {
	rec := &domain.AuditRecord{
		ActorID:   actor,
		Role:      role,
		Action:    action,
		Target:    target,
		Status:    status,
		CreatedAt: c.now(),
	}
	var err error
	for attempt := 0; attempt < auditRetries; attempt++ {
		if err = c.audits.AppendAudit(ctx, rec); err == nil {
			return
		}
	}
	observability.LoggerFromContext(ctx).Error("AUDIT FAILURE: audit row lost after retries",
		"severity", "CRITICAL",
		"actor", actor, "action", action, "target", target, "error", err)
}

// LogSystemEvent records an operator-facing event. Best effort.
func (c *Coordinator) LogSystemEvent(ctx context.Context, level, component, message string, sessionID domain.SessionID) {
	ev := &domain.SystemEvent{
		Level:     level,
		Component: component,
		Message:   message,
		SessionID: sessionID,
		CreatedAt: c.now(),
	}
	if err := c.syslog.AppendSystemEvent(ctx, ev); err != nil {
		observability.LoggerFromContext(ctx).Error("system log write failed", "error", err)
	}
}

// GetOrCreateCase returns the user's open case, creating one if none exists.
// Guests never get a case. The store guarantees at most one open case per
// user even under concurrent calls.
func (c *Coordinator) GetOrCreateCase(ctx context.Context, userID domain.UserID) (*domain.Case, error) {
	if userID == domain.GuestUser || userID == "" {
		return nil, nil
	}
	cs, err := c.cases.GetOrCreateOpenCase(ctx, userID, "New Case")
	if err != nil {
		return nil, fmt.Errorf("%w: get-or-create case: %v", domain.ErrPersistenceFailure, err)
	}
	return cs, nil
}

// SaveInteraction persists one completed pipeline run with encrypted text
// fields, raises the case risk on a critical alert, and appends the run's
// footprint to the memory graph.
func (c *Coordinator) SaveInteraction(ctx context.Context, st *domain.ConsultationState) (domain.InteractionID, error) {
	review := domain.ReviewApproved
	if st.RequiresHumanReview() {
		review = domain.ReviewFlagged
	}
	in := &domain.Interaction{
		UserID:             st.UserID,
		SessionID:          st.SessionID,
		CaseID:             st.CaseID,
		InputEncrypted:     c.cipher.Encrypt(st.Message),
		DiagnosisEncrypted: c.cipher.Encrypt(st.Diagnosis),
		ResponseEncrypted:  c.cipher.Encrypt(st.FinalResponse),
		Language:           st.Language,
		CriticalAlert:      st.CriticalAlert(),
		SafetyStatus:       st.SafetyStatus,
		RequiresReview:     st.RequiresHumanReview(),
		ReviewStatus:       review,
		CreatedAt:          c.now(),
	}
	id, err := c.inters.AppendInteraction(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("%w: append interaction: %v", domain.ErrPersistenceFailure, err)
	}

	if st.CaseID != "" && st.CriticalAlert() {
		if err := c.cases.RaiseCaseRisk(ctx, st.CaseID, 100); err != nil {
			observability.LoggerFromContext(ctx).Error("case risk update failed", "case_id", st.CaseID, "error", err)
		}
	}

	c.updateMemoryGraph(ctx, st)
	return id, nil
}

// updateMemoryGraph appends Symptom/Diagnosis nodes for this run and links
// them to the case node. The graph only ever grows.
func (c *Coordinator) updateMemoryGraph(ctx context.Context, st *domain.ConsultationState) {
	if st.UserID == domain.GuestUser || st.UserID == "" {
		return
	}
	log := observability.LoggerFromContext(ctx)

	summary := st.PatientSummary
	if summary == "" {
		summary = st.Message
	}
	symptomID, err := c.AddMemoryNode(ctx, st.UserID, domain.NodeSymptom, summary,
		map[string]string{"session_id": string(st.SessionID)})
	if err != nil {
		log.Error("memory graph: symptom node failed", "error", err)
		return
	}

	if st.CaseID != "" {
		caseNode, err := c.memory.FindCaseNode(ctx, st.UserID, st.CaseID)
		if err != nil || caseNode == nil {
			var caseNodeID domain.NodeID
			caseNodeID, err = c.AddMemoryNode(ctx, st.UserID, domain.NodeCase,
				fmt.Sprintf("Case: %s", st.CaseID), map[string]string{"case_id": string(st.CaseID)})
			if err == nil {
				caseNode = &domain.MemoryNode{ID: caseNodeID}
			}
		}
		if caseNode != nil {
			c.addEdge(ctx, st.UserID, symptomID, caseNode.ID, domain.RelRelatesTo)
		}
	}

	if st.Diagnosis != "" {
		diagID, err := c.AddMemoryNode(ctx, st.UserID, domain.NodeDiagnosis, st.Diagnosis,
			map[string]string{"session_id": string(st.SessionID)})
		if err == nil {
			c.addEdge(ctx, st.UserID, symptomID, diagID, domain.RelDiagnosedAs)
		}
	}

	if st.VisualFindings != nil && st.VisualFindings.Findings != "" {
		imgID, err := c.AddMemoryNode(ctx, st.UserID, domain.NodeImage, st.VisualFindings.Findings,
			map[string]string{"session_id": string(st.SessionID)})
		if err == nil {
			c.addEdge(ctx, st.UserID, imgID, symptomID, domain.RelRelatesTo)
		}
	}
}

// AddMemoryNode encrypts content and appends one node.
func (c *Coordinator) AddMemoryNode(ctx context.Context, userID domain.UserID, t domain.NodeType, content string, meta map[string]string) (domain.NodeID, error) {
	node := &domain.MemoryNode{
		UserID:           userID,
		Type:             t,
		ContentEncrypted: c.cipher.Encrypt(content),
		Meta:             meta,
		CreatedAt:        c.now(),
	}
	return c.memory.AddNode(ctx, node)
}

func (c *Coordinator) addEdge(ctx context.Context, userID domain.UserID, from, to domain.NodeID, rel domain.Relation) {
	edge := &domain.MemoryEdge{
		UserID:    userID,
		SourceID:  from,
		TargetID:  to,
		Relation:  rel,
		CreatedAt: c.now(),
	}
	if err := c.memory.AddEdge(ctx, edge); err != nil {
		observability.LoggerFromContext(ctx).Error("memory graph: edge failed", "error", err)
	}
}

// MemoryGraphContext renders the most recent memory nodes as text for the
// intake prompt. Failures degrade to an empty context.
func (c *Coordinator) MemoryGraphContext(ctx context.Context, userID domain.UserID) string {
	if userID == domain.GuestUser || userID == "" {
		return ""
	}
	nodes, err := c.memory.RecentNodes(ctx, userID, 15)
	if err != nil || len(nodes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[USER MEMORY GRAPH - RELEVANT NODES]:\n")
	for _, n := range nodes {
		content := c.cipher.Decrypt(n.ContentEncrypted)
		if runes := []rune(content); len(runes) > 200 {
			content = string(runes[:200]) + "..."
		}
		fmt.Fprintf(&b, "- (%s): %s\n", n.Type, content)
	}
	return b.String()
}

// LongTermMemory renders recent decrypted interactions for LLM context.
func (c *Coordinator) LongTermMemory(ctx context.Context, userID domain.UserID) string {
	if userID == domain.GuestUser || userID == "" {
		return "First-time Guest"
	}
	inters, err := c.inters.ListRecentInteractions(ctx, userID, 6)
	if err != nil || len(inters) == 0 {
		return "No previous medical history found."
	}
	var b strings.Builder
	for _, in := range inters {
		fmt.Fprintf(&b, "User: %s\nAI Diagnosis: %s\n",
			c.cipher.Decrypt(in.InputEncrypted),
			c.cipher.Decrypt(in.DiagnosisEncrypted))
	}
	return b.String()
}

// Profile returns the decrypted patient profile, or nil for unknown users.
func (c *Coordinator) Profile(ctx context.Context, userID domain.UserID) *DecryptedProfile {
	if userID == domain.GuestUser || userID == "" {
		return nil
	}
	p, err := c.profiles.GetProfile(ctx, userID)
	if err != nil || p == nil {
		return nil
	}
	return &DecryptedProfile{
		ID:      p.ID,
		Name:    c.cipher.Decrypt(p.NameEncrypted),
		Age:     p.Age,
		Gender:  p.Gender,
		History: c.cipher.Decrypt(p.HistoryEncrypted),
	}
}

type DecryptedProfile struct {
	ID      domain.UserID
	Name    string
	Age     int
	Gender  string
	History string
}

// UpsertProfile encrypts and writes a profile.
func (c *Coordinator) UpsertProfile(ctx context.Context, userID domain.UserID, name string, age int, gender, history string) error {
	p := &domain.PatientProfile{
		ID:               userID,
		NameEncrypted:    c.cipher.Encrypt(name),
		Age:              age,
		Gender:           gender,
		HistoryEncrypted: c.cipher.Encrypt(history),
		CreatedAt:        c.now(),
		UpdatedAt:        c.now(),
	}
	if err := c.profiles.UpsertProfile(ctx, p); err != nil {
		return fmt.Errorf("%w: upsert profile: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// SaveReport persists an encrypted report under the next per-patient version.
func (c *Coordinator) SaveReport(ctx context.Context, st *domain.ConsultationState) (int64, int, error) {
	content := map[string]string{
		"medical_report":       st.ReportMedical,
		"doctor_summary":       st.ReportDoctorSummary,
		"patient_instructions": st.ReportPatientInstructions,
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal report: %w", err)
	}
	version, err := c.reports.NextVersion(ctx, st.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: report version: %v", domain.ErrPersistenceFailure, err)
	}
	status := domain.ReviewPending
	if !st.RequiresHumanReview() {
		status = domain.ReviewApproved
	}
	r := &domain.MedicalReport{
		PatientID:        st.UserID,
		SessionID:        st.SessionID,
		ContentEncrypted: c.cipher.Encrypt(string(raw)),
		Language:         st.Language,
		Version:          version,
		Status:           status,
		CreatedAt:        c.now(),
	}
	id, err := c.reports.SaveReport(ctx, r)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: save report: %v", domain.ErrPersistenceFailure, err)
	}
	return id, version, nil
}

// ListReports returns a patient's reports, newest version first, with the
// sections decrypted. Content the cipher cannot open surfaces as the decrypt
// sentinel in every section rather than failing the listing.
func (c *Coordinator) ListReports(ctx context.Context, patientID domain.UserID) ([]DecryptedReport, error) {
	reports, err := c.reports.ListReportsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %v", domain.ErrPersistenceFailure, err)
	}
	out := make([]DecryptedReport, 0, len(reports))
	for _, r := range reports {
		dr := DecryptedReport{
			ID:        r.ID,
			Version:   r.Version,
			Status:    r.Status,
			Language:  r.Language,
			CreatedAt: r.CreatedAt,
		}
		raw := c.cipher.Decrypt(r.ContentEncrypted)
		var content map[string]string
		if err := json.Unmarshal([]byte(raw), &content); err != nil {
			dr.MedicalReport = raw
			dr.DoctorSummary = raw
			dr.PatientInstructions = raw
		} else {
			dr.MedicalReport = content["medical_report"]
			dr.DoctorSummary = content["doctor_summary"]
			dr.PatientInstructions = content["patient_instructions"]
		}
		out = append(out, dr)
	}
	return out, nil
}

type DecryptedReport struct {
	ID                  int64
	Version             int
	Status              domain.ReviewStatus
	Language            domain.Language
	MedicalReport       string
	DoctorSummary       string
	PatientInstructions string
	CreatedAt           time.Time
}

// ActiveMedications returns the user's active medications, decrypted.
func (c *Coordinator) ActiveMedications(ctx context.Context, userID domain.UserID) []DecryptedMedication {
	if userID == domain.GuestUser || userID == "" {
		return nil
	}
	meds, err := c.meds.ActiveMedications(ctx, userID)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("medication lookup failed", "error", err)
		return nil
	}
	out := make([]DecryptedMedication, 0, len(meds))
	for _, m := range meds {
		out = append(out, DecryptedMedication{
			Name:      c.cipher.Decrypt(m.NameEncrypted),
			Dosage:    c.cipher.Decrypt(m.DosageEncrypted),
			Frequency: c.cipher.Decrypt(m.FrequencyEncrypted),
		})
	}
	return out
}

type DecryptedMedication struct {
	Name      string
	Dosage    string
	Frequency string
}

// AddMedication encrypts and registers a medication.
func (c *Coordinator) AddMedication(ctx context.Context, userID domain.UserID, name, dosage, frequency string) error {
	m := &domain.Medication{
		UserID:             userID,
		NameEncrypted:      c.cipher.Encrypt(name),
		DosageEncrypted:    c.cipher.Encrypt(dosage),
		FrequencyEncrypted: c.cipher.Encrypt(frequency),
		Active:             true,
		CreatedAt:          c.now(),
	}
	if err := c.meds.AddMedication(ctx, m); err != nil {
		return fmt.Errorf("%w: add medication: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// ResolveReview records a reviewer's verdict on an interaction. Only the
// annotation fields change; the interaction body stays immutable.
func (c *Coordinator) ResolveReview(ctx context.Context, id domain.InteractionID, status domain.ReviewStatus, comment, reviewer string) error {
	if err := c.inters.ResolveReview(ctx, id, status, comment); err != nil {
		return fmt.Errorf("%w: resolve review: %v", domain.ErrPersistenceFailure, err)
	}
	c.LogAction(ctx, reviewer, "reviewer", "RESOLVE_REVIEW", fmt.Sprintf("interaction:%d", id), string(status))
	return nil
}
