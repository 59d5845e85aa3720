package domain

import "testing"

func TestApplyOverwritesOnlySetFields(t *testing.T) {
	st := &ConsultationState{
		PatientSummary: "old summary",
		Diagnosis:      "old diagnosis",
	}

	st.Apply(StateDelta{Diagnosis: Str("new diagnosis")})

	if st.Diagnosis != "new diagnosis" {
		t.Fatalf("diagnosis not overwritten: %q", st.Diagnosis)
	}
	if st.PatientSummary != "old summary" {
		t.Fatalf("nil field touched the summary: %q", st.PatientSummary)
	}
}

func TestEscalationFlagsAreMonotonic(t *testing.T) {
	st := &ConsultationState{}

	st.Apply(StateDelta{CriticalAlert: true, RequiresHumanReview: true})
	if !st.CriticalAlert() || !st.RequiresHumanReview() {
		t.Fatal("flags not raised")
	}

	// A later delta with false flags must not clear them.
	st.Apply(StateDelta{Diagnosis: Str("benign")})
	st.Apply(StateDelta{CriticalAlert: false, RequiresHumanReview: false})
	if !st.CriticalAlert() || !st.RequiresHumanReview() {
		t.Fatal("flags were cleared by a later delta")
	}
}

func TestConfidenceDefaultAndClamp(t *testing.T) {
	st := &ConsultationState{}

	if _, set := st.Confidence(); set {
		t.Fatal("confidence reported as set before any delta")
	}
	if got := st.ConfidenceOrDefault(); got != DefaultConfidence {
		t.Fatalf("default confidence = %v, want %v", got, DefaultConfidence)
	}

	st.Apply(StateDelta{Confidence: Float(1.7)})
	if got, set := st.Confidence(); !set || got != 1.0 {
		t.Fatalf("confidence = %v set=%v, want 1.0 clamped", got, set)
	}

	st.Apply(StateDelta{Confidence: Float(-0.2)})
	if got, _ := st.Confidence(); got != 0.0 {
		t.Fatalf("confidence = %v, want 0.0 clamped", got)
	}
}

func TestRedFlagsAccumulate(t *testing.T) {
	st := &ConsultationState{}
	st.Apply(StateDelta{RedFlags: []string{"a"}})
	st.Apply(StateDelta{RedFlags: []string{"b", "c"}})
	if len(st.RedFlags) != 3 {
		t.Fatalf("red flags = %v, want 3 accumulated", st.RedFlags)
	}
}

func TestCaseRefDelta(t *testing.T) {
	st := &ConsultationState{}
	st.Apply(StateDelta{CaseID: CaseRef("case-user-1-42")})
	if st.CaseID != "case-user-1-42" {
		t.Fatalf("case id = %q", st.CaseID)
	}
}

func TestNextStepHint(t *testing.T) {
	st := &ConsultationState{}
	st.Apply(StateDelta{NextStep: Str("end")})
	if st.NextStep != "end" {
		t.Fatalf("next step = %q", st.NextStep)
	}
}
