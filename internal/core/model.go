package core

import (
	"encoding/json"
	"strings"
	"time"
)

// EmailInput represents the email submitted for phishing analysis
type EmailInput struct {
	FromAddress string `json:"from_address" yaml:"from_address"`
	Subject     string `json:"subject" yaml:"subject"`
	Date        string `json:"date" yaml:"date"`
	Content     string `json:"content" yaml:"content"`
}

// Validate rejects a nil email. Empty field values are valid input.
func (e *EmailInput) Validate() error {
	if e == nil {
		return &MissingFieldError{Field: "email"}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Every key must be present;
// an empty string is accepted, a missing or null key is a MissingFieldError.
func (e *EmailInput) UnmarshalJSON(data []byte) error {
	var fields struct {
		FromAddress *string `json:"from_address"`
		Subject     *string `json:"subject"`
		Date        *string `json:"date"`
		Content     *string `json:"content"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	switch {
	case fields.FromAddress == nil:
		return &MissingFieldError{Field: "from_address"}
	case fields.Subject == nil:
		return &MissingFieldError{Field: "subject"}
	case fields.Date == nil:
		return &MissingFieldError{Field: "date"}
	case fields.Content == nil:
		return &MissingFieldError{Field: "content"}
	}

	*e = EmailInput{
		FromAddress: *fields.FromAddress,
		Subject:     *fields.Subject,
		Date:        *fields.Date,
		Content:     *fields.Content,
	}
	return nil
}

// Severity is the severity attached to a finding
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RiskLevel is the model's coarse overall judgment
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskUnknown RiskLevel = "UNKNOWN"
)

// ParseRiskLevel maps a model-reported risk level onto the closed set.
// Matching is exact, so "high" or " HIGH" become RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskLow:
		return RiskLow
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRiskLevel(s)
	return nil
}

// Confidence is the model's confidence in a single indicator.
// The zero value means no confidence was reported.
type Confidence string

const (
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
	ConfidenceUnknown Confidence = "unknown"
)

// ParseConfidence maps a model-reported confidence onto the closed set
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceLow:
		return ConfidenceLow
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceHigh:
		return ConfidenceHigh
	default:
		return ConfidenceUnknown
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseConfidence(s)
	return nil
}

// IndicatorType names the kind of phishing signal reported by the model
type IndicatorType string

const (
	IndicatorCredentials           IndicatorType = "credentials"
	IndicatorImpersonation         IndicatorType = "impersonation"
	IndicatorUrgency               IndicatorType = "urgency"
	IndicatorSuspiciousLinks       IndicatorType = "suspicious_links"
	IndicatorGrammar               IndicatorType = "grammar"
	IndicatorGenericGreeting       IndicatorType = "generic_greeting"
	IndicatorEmotionalManipulation IndicatorType = "emotional_manipulation"
	IndicatorFinancialRequest      IndicatorType = "financial_request"
)

// Indicator is a single phishing-relevant signal reported by the model
type Indicator struct {
	Type        IndicatorType `json:"type"`
	Description string        `json:"description"`
	Confidence  Confidence    `json:"confidence"`
}

// ModelAssessment is the structured answer the model is asked to return
type ModelAssessment struct {
	IsPhishing         bool        `json:"is_phishing"`
	ConfidenceScore    float64     `json:"confidence_score"`
	OverallRiskLevel   RiskLevel   `json:"overall_risk_level"`
	PhishingIndicators []Indicator `json:"phishing_indicators"`
	Reasoning          string      `json:"reasoning"`
	// LegitimateExplanation is carried through but not read by the aggregator
	LegitimateExplanation string `json:"legitimate_explanation,omitempty"`
}

// Finding is a severity-tagged statement intended for an analyst
type Finding struct {
	Severity   Severity   `json:"severity" yaml:"severity"`
	Message    string     `json:"message" yaml:"message"`
	Confidence Confidence `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// AnalysisResult represents the outcome of analyzing one email
type AnalysisResult struct {
	Score      int       `json:"score" yaml:"score"`
	Findings   []Finding `json:"findings" yaml:"findings"`
	AnalysisID string    `json:"analysis_id,omitempty" yaml:"analysis_id,omitempty"`
	ModelUsed  string    `json:"model_used,omitempty" yaml:"model_used,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
	Fallback   bool      `json:"fallback" yaml:"fallback"`
}
