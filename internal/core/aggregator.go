package core

import "math"

const (
	minConfidenceScore = 0

	detectionMessagePrefix = "AI Detection: "
	highRiskMessagePrefix  = "Gemini AI assessment: High phishing probability - "
	mediumRiskSummary      = "Gemini AI assessment: Possible phishing indicators detected"
)

var indicatorSeverities = map[IndicatorType]Severity{
	IndicatorCredentials:           SeverityCritical,
	IndicatorImpersonation:         SeverityHigh,
	IndicatorUrgency:               SeverityMedium,
	IndicatorSuspiciousLinks:       SeverityHigh,
	IndicatorGrammar:               SeverityLow,
	IndicatorGenericGreeting:       SeverityLow,
	IndicatorEmotionalManipulation: SeverityMedium,
	IndicatorFinancialRequest:      SeverityCritical,
}

// SeverityFor maps an indicator type to a severity, defaulting to MEDIUM
func SeverityFor(t IndicatorType) Severity {
	if severity, ok := indicatorSeverities[t]; ok {
		return severity
	}
	return SeverityMedium
}

// AggregateFindings converts a validated assessment into a score and an ordered list of findings
func AggregateFindings(assessment *ModelAssessment) *AnalysisResult {
	result := &AnalysisResult{
		Score:    0,
		Findings: []Finding{},
	}

	if assessment.IsPhishing {
		result.Score += scorePoints(assessment.ConfidenceScore)

		for _, indicator := range assessment.PhishingIndicators {
			result.Findings = append(result.Findings, Finding{
				Severity:   SeverityFor(indicator.Type),
				Message:    detectionMessagePrefix + indicator.Description,
				Confidence: indicator.Confidence,
			})
		}
	}

	switch assessment.OverallRiskLevel {
	case RiskHigh:
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityHigh,
			Message:  highRiskMessagePrefix + assessment.Reasoning,
		})
	case RiskMedium:
		result.Findings = append(result.Findings, Finding{
			Severity: SeverityMedium,
			Message:  mediumRiskSummary,
		})
	}

	return result
}

// scorePoints converts the model's confidence score to points.
// Negative and non-finite values count as zero.
func scorePoints(confidence float64) int {
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) || confidence < minConfidenceScore {
		return minConfidenceScore
	}
	return int(math.Round(confidence))
}
