package domain

import "context"

// InferenceClient defines how the pipeline talks to the text-generation
// backend. The backend is treated as unreliable: callers must bound every
// call with a context deadline and have a documented fallback.
type InferenceClient interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
}

// KnowledgeLookup returns ranked guideline text for a query, or a "no match"
// sentinel. Failures degrade, they never abort a pipeline run.
type KnowledgeLookup interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// CaseStore persists medical cases. GetOrCreateOpenCase must be safe under
// concurrent calls for the same user: at most one open case may result.
type CaseStore interface {
	GetOrCreateOpenCase(ctx context.Context, userID UserID, title string) (*Case, error)
	GetCase(ctx context.Context, id CaseID) (*Case, error)
	RaiseCaseRisk(ctx context.Context, id CaseID, score int) error
	CloseCase(ctx context.Context, id CaseID) error
}

// InteractionStore persists completed pipeline runs. Interactions are
// immutable except for the reviewer annotation fields.
type InteractionStore interface {
	AppendInteraction(ctx context.Context, in *Interaction) (InteractionID, error)
	ListInteractionsBySession(ctx context.Context, sessionID SessionID) ([]*Interaction, error)
	ListRecentInteractions(ctx context.Context, userID UserID, limit int) ([]*Interaction, error)
	ResolveReview(ctx context.Context, id InteractionID, status ReviewStatus, comment string) error
}

// MemoryStore persists the append-only per-user memory graph.
type MemoryStore interface {
	AddNode(ctx context.Context, node *MemoryNode) (NodeID, error)
	AddEdge(ctx context.Context, edge *MemoryEdge) error
	RecentNodes(ctx context.Context, userID UserID, limit int) ([]*MemoryNode, error)
	FindCaseNode(ctx context.Context, userID UserID, caseID CaseID) (*MemoryNode, error)
}

// AuditStore appends immutable audit rows.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec *AuditRecord) error
}

// SystemLogStore records operator-facing events.
type SystemLogStore interface {
	AppendSystemEvent(ctx context.Context, ev *SystemEvent) error
}

// ReportStore persists versioned reports. NextVersion returns 1 for a
// patient with no reports.
type ReportStore interface {
	SaveReport(ctx context.Context, r *MedicalReport) (int64, error)
	NextVersion(ctx context.Context, patientID UserID) (int, error)
	ListReportsByPatient(ctx context.Context, patientID UserID) ([]*MedicalReport, error)
}

// ProfileStore persists patient profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id UserID) (*PatientProfile, error)
	UpsertProfile(ctx context.Context, p *PatientProfile) error
}

// MedicationStore persists tracked medications.
type MedicationStore interface {
	AddMedication(ctx context.Context, m *Medication) error
	ActiveMedications(ctx context.Context, userID UserID) ([]*Medication, error)
}

// Cipher encrypts identifiable fields before they reach storage. Both
// directions are identity on the empty string; Decrypt never fails, it
// returns a fixed error sentinel for ciphertext it cannot open.
type Cipher interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) string
}
