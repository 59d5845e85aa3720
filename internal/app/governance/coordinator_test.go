package governance_test

import (
	"context"
	"errors"
	"testing"

	memstore "medagent/internal/adapters/storage/memory"
	"medagent/internal/app/governance"
	"medagent/internal/domain"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newCoordinator(t *testing.T) (*governance.Coordinator, *memstore.Store) {
	t.Helper()
	cipher, err := governance.NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	s := memstore.NewStore()
	coord := governance.NewCoordinator(cipher, governance.Stores{
		Cases: s, Interactions: s, Memory: s, Audit: s,
		SystemLog: s, Reports: s, Profiles: s, Medications: s,
	})
	return coord, s
}

func TestSaveInteractionEncryptsFields(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(t)

	st := &domain.ConsultationState{
		Message:   "I have a sore throat",
		UserID:    "user-1",
		SessionID: "sess-1",
		Language:  domain.LangEnglish,
		Diagnosis: "likely viral pharyngitis",
	}
	st.Apply(domain.StateDelta{FinalResponse: domain.Str("rest and fluids")})

	id, err := coord.SaveInteraction(ctx, st)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == 0 {
		t.Fatal("no interaction id")
	}

	inters, err := store.ListInteractionsBySession(ctx, "sess-1")
	if err != nil || len(inters) != 1 {
		t.Fatalf("listed %d interactions, err=%v", len(inters), err)
	}
	in := inters[0]
	if in.InputEncrypted == st.Message || in.DiagnosisEncrypted == st.Diagnosis {
		t.Fatal("plaintext reached storage")
	}
	if coord.Decrypt(in.InputEncrypted) != st.Message {
		t.Fatal("input does not decrypt back")
	}
	if in.ReviewStatus != domain.ReviewApproved {
		t.Fatalf("review status = %s, want approved for a clean run", in.ReviewStatus)
	}
}

func TestSaveInteractionFlagsReviewAndRaisesRisk(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(t)

	c, err := store.GetOrCreateOpenCase(ctx, "user-2", "New Case")
	if err != nil {
		t.Fatalf("case: %v", err)
	}

	st := &domain.ConsultationState{
		Message:   "severe chest pain",
		UserID:    "user-2",
		SessionID: "sess-2",
		CaseID:    c.ID,
	}
	st.Apply(domain.StateDelta{CriticalAlert: true, RequiresHumanReview: true})

	if _, err := coord.SaveInteraction(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := store.GetCase(ctx, c.ID)
	if got.RiskScore != 100 {
		t.Fatalf("risk score = %d, want 100 after critical alert", got.RiskScore)
	}

	inters, _ := store.ListInteractionsBySession(ctx, "sess-2")
	if inters[0].ReviewStatus != domain.ReviewFlagged {
		t.Fatalf("review status = %s, want flagged", inters[0].ReviewStatus)
	}
}

func TestMemoryGraphGrowsPerRun(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(t)

	c, _ := store.GetOrCreateOpenCase(ctx, "user-3", "New Case")
	st := &domain.ConsultationState{
		Message:        "recurring migraines",
		UserID:         "user-3",
		SessionID:      "sess-3",
		CaseID:         c.ID,
		PatientSummary: "PATIENT SUMMARY: recurring migraines",
		Diagnosis:      "migraine without aura",
	}
	if _, err := coord.SaveInteraction(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	nodes, _ := store.RecentNodes(ctx, "user-3", 10)
	var symptom, diag, caseNode int
	for _, n := range nodes {
		switch n.Type {
		case domain.NodeSymptom:
			symptom++
		case domain.NodeDiagnosis:
			diag++
		case domain.NodeCase:
			caseNode++
		}
	}
	if symptom != 1 || diag != 1 || caseNode != 1 {
		t.Fatalf("nodes symptom/diag/case = %d/%d/%d, want 1/1/1", symptom, diag, caseNode)
	}

	// A second run reuses the existing case node.
	if _, err := coord.SaveInteraction(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	nodes, _ = store.RecentNodes(ctx, "user-3", 20)
	caseNode = 0
	for _, n := range nodes {
		if n.Type == domain.NodeCase {
			caseNode++
		}
	}
	if caseNode != 1 {
		t.Fatalf("case nodes = %d, want the original reused", caseNode)
	}
}

func TestGuestGetsNoCaseAndNoGraph(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(t)

	c, err := coord.GetOrCreateCase(ctx, domain.GuestUser)
	if err != nil || c != nil {
		t.Fatalf("guest case = %v, err=%v, want nil/nil", c, err)
	}

	st := &domain.ConsultationState{Message: "hi", UserID: domain.GuestUser, SessionID: "sess-g"}
	if _, err := coord.SaveInteraction(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	nodes, _ := store.RecentNodes(ctx, domain.GuestUser, 10)
	if len(nodes) != 0 {
		t.Fatalf("guest grew a memory graph: %d nodes", len(nodes))
	}
}

func TestAuditRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(t)

	store.FailNext("AppendAudit", errors.New("transient"))
	coord.LogAction(ctx, "user-4", "patient", "TEST_ACTION", "target", "SUCCESS")

	if got := len(store.Audits()); got != 1 {
		t.Fatalf("audit rows = %d, want 1 after retry", got)
	}
}

func TestSaveReportVersions(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t)

	st := &domain.ConsultationState{
		UserID:        "user-5",
		SessionID:     "sess-5",
		Language:      domain.LangEnglish,
		ReportMedical: "findings",
	}
	_, v1, err := coord.SaveReport(ctx, st)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	_, v2, err := coord.SaveReport(ctx, st)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Fatalf("versions = %d,%d, want 1,2", v1, v2)
	}

	reports, err := coord.ListReports(ctx, "user-5")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 2 || reports[0].Version != 2 {
		t.Fatalf("listed %d reports, newest version %d", len(reports), reports[0].Version)
	}
	if reports[0].MedicalReport != "findings" {
		t.Fatalf("decrypted report = %q", reports[0].MedicalReport)
	}
}

func TestProfileAndMedicationRoundTrip(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t)

	if err := coord.UpsertProfile(ctx, "user-6", "Lina", 34, "female", "asthma"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p := coord.Profile(ctx, "user-6")
	if p == nil || p.Name != "Lina" || p.History != "asthma" {
		t.Fatalf("profile = %+v", p)
	}

	if err := coord.AddMedication(ctx, "user-6", "salbutamol", "100mcg", "as needed"); err != nil {
		t.Fatalf("add med: %v", err)
	}
	meds := coord.ActiveMedications(ctx, "user-6")
	if len(meds) != 1 || meds[0].Name != "salbutamol" {
		t.Fatalf("meds = %+v", meds)
	}
}
