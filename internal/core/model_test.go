package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRiskLevel(t *testing.T) {
	tests := map[string]RiskLevel{
		"LOW":      RiskLow,
		"MEDIUM":   RiskMedium,
		"HIGH":     RiskHigh,
		"high":     RiskUnknown,
		" HIGH ":   RiskUnknown,
		"CRITICAL": RiskUnknown,
		"":         RiskUnknown,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseRiskLevel(in), "input %q", in)
	}
}

func TestParseConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ParseConfidence("HIGH"))
	assert.Equal(t, ConfidenceLow, ParseConfidence(" low"))
	assert.Equal(t, ConfidenceUnknown, ParseConfidence("certain"))
}

func TestEmailInput_UnmarshalJSON(t *testing.T) {
	var email EmailInput
	require.NoError(t, json.Unmarshal([]byte(`{"from_address":"a@paypa1.com","subject":"","date":"2025-11-01","content":"Click"}`), &email))
	assert.Equal(t, EmailInput{FromAddress: "a@paypa1.com", Date: "2025-11-01", Content: "Click"}, email)

	tests := map[string]string{
		"from_address": `{"subject":"s","date":"d","content":"c"}`,
		"subject":      `{"from_address":"f","date":"d","content":"c"}`,
		"date":         `{"from_address":"f","subject":"s","date":null,"content":"c"}`,
		"content":      `{"from_address":"f","subject":"s","date":"d"}`,
	}

	for field, data := range tests {
		var input EmailInput
		err := json.Unmarshal([]byte(data), &input)

		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing), "field %s", field)
		assert.Equal(t, field, missing.Field)
		assert.True(t, errors.Is(err, ErrMissingField))
	}
}

func TestIndicator_UnmarshalJSON(t *testing.T) {
	var indicator Indicator
	require.NoError(t, json.Unmarshal([]byte(`{"type":"impersonation","description":"Claims to be PayPal","confidence":"Medium"}`), &indicator))

	assert.Equal(t, IndicatorImpersonation, indicator.Type)
	assert.Equal(t, ConfidenceMedium, indicator.Confidence)

	var bare Indicator
	require.NoError(t, json.Unmarshal([]byte(`{"type":"grammar","description":"typos"}`), &bare))
	assert.Equal(t, Confidence(""), bare.Confidence)
}

func TestAnalysisResult_JSON(t *testing.T) {
	result := &AnalysisResult{
		Score:    35,
		Findings: []Finding{{Severity: SeverityHigh, Message: "AI Detection: spoofed sender"}},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"score":35`)
	assert.Contains(t, string(data), `"findings":[{"severity":"HIGH","message":"AI Detection: spoofed sender"}]`)
}

func TestModelInvocationError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("analysis: %w", &ModelInvocationError{Model: "gemini-1.5-flash", Err: cause})

	assert.True(t, errors.Is(err, ErrModelInvocation))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrMissingField))
	assert.Equal(t, "analysis: model invocation failed (gemini-1.5-flash): connection refused", err.Error())

	bare := &ModelInvocationError{Err: cause}
	assert.Equal(t, "model invocation failed: connection refused", bare.Error())
}
