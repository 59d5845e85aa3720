package stages

import (
	"context"
	"fmt"
	"strings"

	"medagent/internal/app/governance"
	"medagent/internal/app/pipeline"
	"medagent/internal/domain"
)

// Medication handles medication-intent messages: it lists the user's active
// medications from encrypted persistence and answers in the user's language.
type Medication struct {
	coord *governance.Coordinator
}

func NewMedication(coord *governance.Coordinator) *Medication {
	return &Medication{coord: coord}
}

func (s *Medication) Name() string { return pipeline.StageMedication }

func (s *Medication) Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error) {
	meds := s.coord.ActiveMedications(ctx, st.UserID)

	var list string
	if len(meds) == 0 {
		list = "No active medications found."
		if st.Language == domain.LangArabic {
			list = "لا توجد أدوية نشطة مسجلة."
		}
	} else {
		var b strings.Builder
		for _, m := range meds {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", m.Name, m.Dosage, m.Frequency)
		}
		list = strings.TrimRight(b.String(), "\n")
	}

	response := fmt.Sprintf(
		"I am managing your medication profile. Here are your current active medications:\n%s\n\n"+
			"You can add new medications or set reminders from your medication list.", list)
	if st.Language == domain.LangArabic {
		response = fmt.Sprintf(
			"أنا أقوم بإدارة ملف الأدوية الخاص بك. إليك أدويتك الحالية:\n%s\n\n"+
				"يمكنك إضافة أدوية جديدة أو ضبط التذكيرات من قائمة الأدوية.", list)
	}

	s.coord.LogAction(ctx, string(st.UserID), string(st.Mode), "LIST_MEDICATIONS", string(st.SessionID), "SUCCESS")
	return domain.StateDelta{FinalResponse: domain.Str(response)}, nil
}
