package core

import "fmt"

// promptTemplate takes, in order: from address, subject, date, content
const promptTemplate = `You are a cybersecurity expert analyzing an email for phishing indicators.

**EMAIL METADATA:**
- From: %[1]s
- Subject: %[2]s
- Date: %[3]s

**EMAIL CONTENT:**
%[4]s

**ANALYSIS TASK:**
Analyze this email for phishing indicators and return your assessment in JSON format.

Look for these specific indicators:
1. **Deceptive language**: False urgency, threats, or pressure tactics
2. **Credential harvesting**: Requests for passwords, account verification, or personal info
3. **Impersonation**: Pretending to be a legitimate organization
4. **Generic greetings**: "Dear Customer" instead of personalized names
5. **Grammar/spelling**: Unusual errors or awkward phrasing
6. **Suspicious requests**: Unexpected money transfers, gift card purchases
7. **Emotional manipulation**: Fear, urgency, or too-good-to-be-true offers

**REQUIRED JSON OUTPUT FORMAT:**
{
    "is_phishing": true/false,
    "confidence_score": 0-50 (points to add to risk score),
    "overall_risk_level": "LOW/MEDIUM/HIGH",
    "phishing_indicators": [
        {
            "type": "urgency/credentials/impersonation/suspicious_links/grammar/generic_greeting/emotional_manipulation/financial_request",
            "description": "Brief description of what you found",
            "confidence": "low/medium/high"
        }
    ],
    "reasoning": "Brief explanation of your overall assessment",
    "legitimate_explanation": "If not phishing, why this might be legitimate"
}

Be thorough but concise. Focus on concrete indicators, not speculation.`

// BuildPrompt renders the analysis prompt for an email.
// Field values are inserted verbatim without escaping.
func BuildPrompt(email *EmailInput) (string, error) {
	if err := email.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf(promptTemplate, email.FromAddress, email.Subject, email.Date, email.Content), nil
}
