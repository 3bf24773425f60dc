package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/patchflow/patchflow/internal/types"
)

const (
	// maxKeywords caps the total extracted term set
	maxKeywords = 20

	// Confidence score weights. Each component is bounded; the sum is
	// capped at 1.0.
	countWeight     = 0.4 // full weight at maxKeywords terms
	technicalWeight = 0.4 // scaled by the fraction of technical terms
	lengthWeight    = 0.2 // full weight at inputLengthFull characters

	inputLengthFull = 1000
)

// KeywordResult holds the extracted term set and its confidence score
type KeywordResult struct {
	Terms      []string `json:"terms"`
	Confidence float64  `json:"confidence"`
}

// extractKeywords derives candidate terms from the submission's subject and
// description via the analysis collaborator, unions them with case-folded
// user tags, and caps the total at maxKeywords.
func extractKeywords(ctx context.Context, client AnalysisClient, sub types.Submission) (*KeywordResult, error) {
	text := sub.Subject + "\n" + sub.Description

	extracted, err := client.ExtractKeywords(ctx, text, KeywordOptions{
		MaxKeywords:       maxKeywords,
		UseTechnicalTerms: true,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword extraction failed: %w", err)
	}

	seen := make(map[string]struct{})
	terms := make([]string, 0, maxKeywords)
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		if len(terms) >= maxKeywords {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, term := range extracted {
		add(term)
	}
	for _, tag := range sub.Tags {
		add(tag)
	}

	return &KeywordResult{
		Terms:      terms,
		Confidence: keywordConfidence(client, terms, len(text)),
	}, nil
}

// keywordConfidence scores an extraction from three bounded, additive
// components: how many terms were found, how many of them the analysis
// engine recognizes as technical vocabulary, and how much input text backed
// the extraction. The total is capped at 1.0.
func keywordConfidence(client AnalysisClient, terms []string, inputLen int) float64 {
	if len(terms) == 0 {
		return 0
	}

	countScore := float64(len(terms)) / maxKeywords * countWeight
	if countScore > countWeight {
		countScore = countWeight
	}

	technical := 0
	for _, term := range terms {
		if client.IsTechnicalTerm(term) {
			technical++
		}
	}
	technicalScore := float64(technical) / float64(len(terms)) * technicalWeight

	lengthScore := float64(inputLen) / inputLengthFull * lengthWeight
	if lengthScore > lengthWeight {
		lengthScore = lengthWeight
	}

	score := countScore + technicalScore + lengthScore
	if score > 1.0 {
		score = 1.0
	}
	return score
}
