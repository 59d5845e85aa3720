package domain

type UserID string
type SessionID string
type CaseID string
type InteractionID int64
type NodeID int64

// GuestUser marks unauthenticated requests. Guests get no case, no profile
// and no memory graph.
const GuestUser UserID = "guest"

// Language tags supported by the keyword router and localized fallbacks.
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
)

// InteractionMode controls the register of generated text.
type InteractionMode string

const (
	ModePatient InteractionMode = "patient" // lay wording
	ModeDoctor  InteractionMode = "doctor"  // professional wording
)

// Urgency is the triage classification ladder.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// RiskLevel is the safety-gate stratification tier.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// SafetyStatus is the safety-gate state machine. SAFE is the entry state;
// the gate may move it to UNSAFE or BLOCKED, never back.
type SafetyStatus string

const (
	SafetySafe    SafetyStatus = "safe"
	SafetyUnsafe  SafetyStatus = "unsafe"
	SafetyBlocked SafetyStatus = "blocked"
	SafetyError   SafetyStatus = "error"
)

type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationWarning ValidationStatus = "warning"
	ValidationSkipped ValidationStatus = "skipped"
	ValidationError   ValidationStatus = "error"
)

// ReviewStatus tracks the human-review workflow on an interaction.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewFlagged  ReviewStatus = "flagged"
)

type CaseStatus string

const (
	CaseOpen   CaseStatus = "open"
	CaseClosed CaseStatus = "closed"
)

// NodeType tags entries in the per-user memory graph.
type NodeType string

const (
	NodeSymptom    NodeType = "Symptom"
	NodeDiagnosis  NodeType = "Diagnosis"
	NodeCase       NodeType = "Case"
	NodeImage      NodeType = "Image"
	NodeMedication NodeType = "Medication"
)

// Relation tags edges in the memory graph.
type Relation string

const (
	RelRelatesTo   Relation = "relates_to"
	RelDiagnosedAs Relation = "diagnosed_as"
	RelFollowUpOf  Relation = "follow_up_of"
)
