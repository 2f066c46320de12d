package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fallbackConfidenceScore = 20
	fallbackReasoningLimit  = 100
)

var (
	requiredAssessmentFields = []string{
		"is_phishing",
		"confidence_score",
		"overall_risk_level",
		"phishing_indicators",
		"reasoning",
	}

	fallbackKeywords = []string{"phishing", "suspicious", "malicious"}
)

// Normalized is the outcome of normalizing a model response: either Parsed or Fallback
type Normalized interface {
	Assessment() *ModelAssessment
	isNormalized()
}

// Parsed holds an assessment decoded from well-formed model output
type Parsed struct {
	assessment *ModelAssessment
}

// Assessment returns the parsed assessment
func (p Parsed) Assessment() *ModelAssessment { return p.assessment }

func (Parsed) isNormalized() {}

// Fallback holds the keyword-based assessment used when the model output
// could not be parsed as the expected schema
type Fallback struct {
	assessment *ModelAssessment
	// Cause wraps ErrNormalizationFailure with the parse or validation detail
	Cause error
}

// Assessment returns the fallback assessment
func (f Fallback) Assessment() *ModelAssessment { return f.assessment }

func (Fallback) isNormalized() {}

// NormalizeResponse turns raw model text into a validated assessment.
// It never fails: unparseable output yields a Fallback.
func NormalizeResponse(raw string) Normalized {
	assessment, err := parseAssessment(raw)
	if err != nil {
		return Fallback{
			assessment: fallbackAssessment(raw),
			Cause:      fmt.Errorf("%w: %v", ErrNormalizationFailure, err),
		}
	}
	return Parsed{assessment: assessment}
}

// stripCodeFence removes a ```json or bare ``` fence wrapped around the text
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	return strings.TrimSpace(cleaned)
}

func parseAssessment(raw string) (*ModelAssessment, error) {
	cleaned := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	var missing []string
	for _, name := range requiredAssessmentFields {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	var assessment ModelAssessment
	if err := json.Unmarshal([]byte(cleaned), &assessment); err != nil {
		return nil, fmt.Errorf("unexpected field types: %w", err)
	}
	if assessment.PhishingIndicators == nil {
		assessment.PhishingIndicators = []Indicator{}
	}

	return &assessment, nil
}

// fallbackAssessment derives a deterministic assessment from the raw text
func fallbackAssessment(raw string) *ModelAssessment {
	lower := strings.ToLower(raw)
	isPhishing := false
	for _, keyword := range fallbackKeywords {
		if strings.Contains(lower, keyword) {
			isPhishing = true
			break
		}
	}

	return &ModelAssessment{
		IsPhishing:         isPhishing,
		ConfidenceScore:    fallbackConfidenceScore,
		OverallRiskLevel:   RiskMedium,
		PhishingIndicators: []Indicator{},
		Reasoning:          firstSentence(raw),
	}
}

// firstSentence returns the text before the first period, or the first
// fallbackReasoningLimit characters when there is no period
func firstSentence(text string) string {
	if idx := strings.Index(text, "."); idx >= 0 {
		return text[:idx]
	}
	runes := []rune(text)
	if len(runes) > fallbackReasoningLimit {
		return string(runes[:fallbackReasoningLimit])
	}
	return text
}
