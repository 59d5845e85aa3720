package knowledge

// DefaultCorpus is a small built-in guideline set so the service works out
// of the box. Deployments replace it via NewRetrieverFromFile.
func DefaultCorpus() []Guideline {
	return []Guideline{
		{
			Topic: "Chest pain",
			Text:  "Acute chest pain with radiation to the arm or jaw, shortness of breath, or diaphoresis warrants immediate emergency evaluation. Do not delay transport for further history.",
		},
		{
			Topic: "Fever in adults",
			Text:  "Fever above 38C persisting beyond 72 hours, or any fever with neck stiffness, confusion, or petechial rash, requires same-day clinical assessment.",
		},
		{
			Topic: "Headache",
			Text:  "Sudden severe headache (thunderclap), headache with fever and neck stiffness, or new headache after age 50 are red flags requiring urgent evaluation.",
		},
		{
			Topic: "Abdominal pain",
			Text:  "Right lower quadrant pain with guarding, rigidity, or rebound tenderness suggests appendicitis. Persistent pain with vomiting or blood in stool needs urgent review.",
		},
		{
			Topic: "Shortness of breath",
			Text:  "Breathlessness at rest, cyanosis, or inability to speak in full sentences indicates respiratory compromise and requires emergency care.",
		},
		{
			Topic: "Skin rash",
			Text:  "Rapidly spreading rash, rash with fever, blistering involving mucous membranes, or non-blanching purpura need urgent dermatological or emergency assessment.",
		},
		{
			Topic: "Dizziness",
			Text:  "Vertigo with focal neurological signs, sudden hearing loss, or severe imbalance may indicate a central cause and warrants neurological evaluation.",
		},
	}
}
