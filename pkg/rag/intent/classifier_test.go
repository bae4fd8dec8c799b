package intent

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name            string
		utterance       string
		wantIntent      Intent
		wantDescription string
	}{
		{
			name:       "greeting exact match",
			utterance:  "Привет",
			wantIntent: GeneralChat,
		},
		{
			name:       "greeting with surrounding spaces",
			utterance:  "  спасибо  ",
			wantIntent: GeneralChat,
		},
		{
			name:       "greeting inside a question is not general chat",
			utterance:  "привет, какой допуск у сварного шва?",
			wantIntent: RAGQuery,
		},
		{
			name:            "prescription trigger alone",
			utterance:       "предписание",
			wantIntent:      PrescriptionRequest,
			wantDescription: "",
		},
		{
			name:            "prescription with preposition stripped",
			utterance:       "выдать предписание по кровельным работам",
			wantIntent:      PrescriptionRequest,
			wantDescription: "кровельным работам",
		},
		{
			name:            "prescription keeps description case",
			utterance:       "Составь предписание за Бетонные работы",
			wantIntent:      PrescriptionRequest,
			wantDescription: "Бетонные работы",
		},
		{
			name:            "only one preposition is stripped",
			utterance:       "предписание по по монтажу",
			wantIntent:      PrescriptionRequest,
			wantDescription: "по монтажу",
		},
		{
			name:       "plain question",
			utterance:  "Какая минимальная толщина защитного слоя бетона?",
			wantIntent: RAGQuery,
		},
		{
			name:       "empty input",
			utterance:  "",
			wantIntent: RAGQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotIntent, gotDescription := Classify(tt.utterance)
			if gotIntent != tt.wantIntent {
				t.Errorf("Classify(%q) intent = %v, want %v", tt.utterance, gotIntent, tt.wantIntent)
			}
			if gotDescription != tt.wantDescription {
				t.Errorf("Classify(%q) description = %q, want %q", tt.utterance, gotDescription, tt.wantDescription)
			}
		})
	}
}
