package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"medagent/internal/app/governance"
	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
	"medagent/internal/observability"
	"medagent/internal/textproc"
)

// Fixed header tokens for section parsing. Each section runs until the next
// known header or end of text.
const (
	headerMedical      = "MEDICAL_REPORT"
	headerDoctor       = "DOCTOR_SUMMARY"
	headerInstructions = "PATIENT_INSTRUCTIONS"
)

const reportSystemPrompt = `You are a medical report writer. Use only the provided guidelines and findings.
Output exactly three sections with these exact headers on their own lines:
MEDICAL_REPORT:
DOCTOR_SUMMARY:
PATIENT_INSTRUCTIONS:
The patient instructions must use simple, non-technical language.`

const (
	emergencyBannerEN = "🚨 EMERGENCY: The described symptoms may be life-threatening. Seek immediate medical attention or call your local emergency number now."
	emergencyBannerAR = "🚨 حالة طارئة: الأعراض الموصوفة قد تهدد الحياة. اطلب الرعاية الطبية الفورية أو اتصل برقم الطوارئ المحلي الآن."

	fallbackInstructionsEN = "No specific instructions generated. Please follow your doctor's advice."
	fallbackInstructionsAR = "لم يتم إنشاء تعليمات محددة. يرجى اتباع نصيحة طبيبك."
	fallbackSectionEN      = "Section unavailable."
	fallbackSectionAR      = "هذا القسم غير متوفر."
)

// Report synthesizes the three labeled report sections, appends the safety
// disclaimer exactly once, and persists the assembled report encrypted with
// an auto-incrementing per-patient version.
type Report struct {
	llm     domain.InferenceClient
	coord   *governance.Coordinator
	timeout time.Duration
}

func NewReport(llm domain.InferenceClient, coord *governance.Coordinator, timeout time.Duration) *Report {
	return &Report{llm: llm, coord: coord, timeout: timeout}
}

func (s *Report) Name() string { return pipeline.StageReport }

func (s *Report) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	log := observability.LoggerFromContext(ctx).With("stage", s.Name())

	// A withheld diagnosis stays withheld: no generation, the sentinel is
	// the entire user-facing output.
	if st.SafetyStatus == domain.SafetyUnsafe {
		return domain.StateDelta{
			ReportMedical:             domain.Str(domain.WithheldSentinel),
			ReportDoctorSummary:       domain.Str(domain.WithheldSentinel),
			ReportPatientInstructions: domain.Str(textproc.AddDisclaimer(domain.WithheldSentinel)),
			FinalResponse:             domain.Str(domain.WithheldSentinel),
		}, nil
	}

	prompt := fmt.Sprintf(
		"GUIDELINES:\n%s\n\nPATIENT SUMMARY:\n%s\n\nDIAGNOSIS (confidence %.2f):\n%s\n\nURGENCY: %s",
		st.RetrievedDocs, st.PatientSummary, st.ConfidenceOrDefault(), st.Diagnosis, st.Urgency,
	)

	medical, doctor, instructions := s.generateSections(ctx, st, prompt, log)
	instructions = textproc.AddDisclaimer(instructions)

	final := s.assembleResponse(st, medical, instructions)

	delta := domain.StateDelta{
		ReportMedical:             domain.Str(medical),
		ReportDoctorSummary:       domain.Str(doctor),
		ReportPatientInstructions: domain.Str(instructions),
		FinalResponse:             domain.Str(final),
	}

	// Persist through the coordinator; the report write is best-effort for
	// the pipeline but leaves an audit trace either way.
	st.Apply(delta)
	if _, version, err := s.coord.SaveReport(ctx, st); err != nil {
		log.Error("report persistence failed", "error", err)
		s.coord.LogAction(ctx, string(st.UserID), string(st.Mode), "SAVE_REPORT", string(st.SessionID), "FAILURE")
	} else {
		s.coord.LogAction(ctx, string(st.UserID), string(st.Mode), "SAVE_REPORT",
			fmt.Sprintf("%s:v%d", st.SessionID, version), "SUCCESS")
	}

	return delta, nil
}

func (s *Report) generateSections(ctx context.Context, st *domain.ConsultationState, prompt string, log *slog.Logger) (medical, doctor, instructions string) {
	fallbackSection := fallbackSectionEN
	fallbackInstr := fallbackInstructionsEN
	if st.Language == domain.LangArabic {
		fallbackSection = fallbackSectionAR
		fallbackInstr = fallbackInstructionsAR
	}

	reply, err := invoke(ctx, s.llm, s.timeout, reportSystemPrompt+"\n"+langInstruction(st.Language), prompt, 0.1)
	if err != nil {
		log.Error("report inference failed, using fallbacks", "error", err)
		return fallbackSection, fallbackSection, fallbackInstr
	}

	sections := textproc.ParseSections(reply, []string{headerMedical, headerDoctor, headerInstructions})
	medical = sections[headerMedical]
	doctor = sections[headerDoctor]
	instructions = sections[headerInstructions]

	// No header found at all: treat the whole reply as the medical report.
	if medical == "" && doctor == "" && instructions == "" {
		medical = strings.TrimSpace(reply)
	}
	if medical == "" {
		medical = fallbackSection
	}
	if doctor == "" {
		doctor = fallbackSection
	}
	if instructions == "" {
		instructions = fallbackInstr
	}
	return medical, doctor, instructions
}

func (s *Report) assembleResponse(st *domain.ConsultationState, medical, instructions string) string {
	var b strings.Builder
	if st.CriticalAlert() {
		banner := emergencyBannerEN
		if st.Language == domain.LangArabic {
			banner = emergencyBannerAR
		}
		b.WriteString(banner)
		b.WriteString("\n\n")
	}
	b.WriteString(medical)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	return b.String()
}
