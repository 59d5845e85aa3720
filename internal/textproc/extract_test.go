package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	var v struct {
		Diagnosis       string   `json:"diagnosis"`
		ConfidenceScore *float64 `json:"confidence_score"`
	}
	text := `Sure, here is my assessment: {"diagnosis": "tension headache", "confidence_score": 0.9} hope that helps`

	require.True(t, ExtractJSON(text, &v))
	assert.Equal(t, "tension headache", v.Diagnosis)
	require.NotNil(t, v.ConfidenceScore)
	assert.Equal(t, 0.9, *v.ConfidenceScore)
}

func TestExtractJSONNoObject(t *testing.T) {
	var v map[string]any
	assert.False(t, ExtractJSON("plain text without braces", &v))
	assert.False(t, ExtractJSON("} backwards {", &v))
	assert.False(t, ExtractJSON("{not valid json}", &v))
}

func TestParseSections(t *testing.T) {
	text := "MEDICAL_REPORT:\nFindings here.\nDOCTOR_SUMMARY: summary text\nPATIENT_INSTRUCTIONS - rest well"
	sections := ParseSections(text, []string{"MEDICAL_REPORT", "DOCTOR_SUMMARY", "PATIENT_INSTRUCTIONS"})

	assert.Equal(t, "Findings here.", sections["MEDICAL_REPORT"])
	assert.Equal(t, "summary text", sections["DOCTOR_SUMMARY"])
	assert.Equal(t, "rest well", sections["PATIENT_INSTRUCTIONS"])
}

func TestParseSectionsMissingHeader(t *testing.T) {
	sections := ParseSections("MEDICAL_REPORT: only this", []string{"MEDICAL_REPORT", "DOCTOR_SUMMARY"})
	assert.Equal(t, "only this", sections["MEDICAL_REPORT"])
	assert.Equal(t, "", sections["DOCTOR_SUMMARY"])
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("I have a headache"))
	assert.Equal(t, "ar", DetectLanguage("عندي صداع شديد"))
	assert.Equal(t, "ar", DetectLanguage("pain في الصدر منذ يومين"))
	assert.Equal(t, "en", DetectLanguage("12345 !!"))
}
