package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YuqingLong18/aidaily/pkg/domain"
)

func TestKeyword_Classify(t *testing.T) {
	c := Keyword{}

	tests := []struct {
		name     string
		itemType domain.ItemType
		text     string
		want     domain.Section
	}{
		{"paper science", domain.TypePaper, "Predicting protein folding with transformers", domain.SectionAIForScience},
		{"paper climate", domain.TypePaper, "Climate modeling at scale", domain.SectionAIForScience},
		{"paper education", domain.TypePaper, "LLM tutors improve student assessment", domain.SectionAIEducation},
		{"paper default", domain.TypePaper, "Attention is all you need", domain.SectionAITheoryArch},
		{"paper empty", domain.TypePaper, "", domain.SectionAITheoryArch},
		{"news policy", domain.TypeNews, "EU regulators propose AI compliance rules", domain.SectionMarketPolicy},
		{"news funding", domain.TypeNews, "Startup raises Series B funding round", domain.SectionMarketPolicy},
		{"news default", domain.TypeNews, "Company ships new coding assistant", domain.SectionProductTech},
		{"news empty", domain.TypeNews, "", domain.SectionProductTech},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.itemType, tt.text))
		})
	}
}

func TestKeyword_Classify_CaseInsensitive(t *testing.T) {
	c := Keyword{}
	assert.Equal(t, domain.SectionAIForScience, c.Classify(domain.TypePaper, "PROTEIN structures"))
	assert.Equal(t, domain.SectionMarketPolicy, c.Classify(domain.TypeNews, "New REGULATION incoming"))
}
