package domain

import "time"

// Case groups interactions for one user across requests. At most one open
// case exists per user; the storage layer enforces it with a unique index.
type Case struct {
	ID        CaseID
	UserID    UserID
	Title     string
	Status    CaseStatus
	RiskScore int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interaction is the persisted record of one completed pipeline run.
// Free-text fields hold ciphertext; plaintext never reaches storage.
type Interaction struct {
	ID                 InteractionID
	UserID             UserID
	SessionID          SessionID
	CaseID             CaseID // empty when the run had no case (guest)
	InputEncrypted     string
	DiagnosisEncrypted string
	ResponseEncrypted  string
	Language           Language
	CriticalAlert      bool
	SafetyStatus       SafetyStatus
	RequiresReview     bool
	ReviewStatus       ReviewStatus
	ReviewerComment    string
	CreatedAt          time.Time
}

// MemoryNode is one typed entry in a user's memory graph. Content is stored
// encrypted; the graph is append-only.
type MemoryNode struct {
	ID               NodeID
	UserID           UserID
	Type             NodeType
	ContentEncrypted string
	Meta             map[string]string
	CreatedAt        time.Time
}

type MemoryEdge struct {
	ID        int64
	UserID    UserID
	SourceID  NodeID
	TargetID  NodeID
	Relation  Relation
	CreatedAt time.Time
}

// AuditRecord is an append-only trace of a sensitive action. Never updated,
// never deleted.
type AuditRecord struct {
	ID        int64
	ActorID   string
	Role      string
	Action    string
	Target    string
	Status    string
	CreatedAt time.Time
}

// SystemEvent is an operator-facing log row; internal errors land here
// instead of in user responses.
type SystemEvent struct {
	ID        int64
	Level     string
	Component string
	Message   string
	SessionID SessionID
	CreatedAt time.Time
}

// MedicalReport is one persisted, versioned report. Version auto-increments
// per patient.
type MedicalReport struct {
	ID               int64
	PatientID        UserID
	SessionID        SessionID
	ContentEncrypted string
	Language         Language
	Version          int
	Status           ReviewStatus
	CreatedAt        time.Time
}

// PatientProfile holds the encrypted identity/history of a registered user.
type PatientProfile struct {
	ID               UserID
	NameEncrypted    string
	Age              int
	Gender           string
	HistoryEncrypted string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Medication is one tracked medication with encrypted detail fields.
type Medication struct {
	ID                 int64
	UserID             UserID
	NameEncrypted      string
	DosageEncrypted    string
	FrequencyEncrypted string
	Active             bool
	CreatedAt          time.Time
}
