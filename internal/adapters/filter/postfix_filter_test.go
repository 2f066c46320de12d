package filter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const rawPhishingEmail = "From: PayPal <support@paypa1.com>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: Verify your account\r\n" +
	"Date: Sat, 01 Nov 2025 10:00:00 +0000\r\n" +
	"\r\n" +
	"Click here to verify: http://paypa1-verify.com\r\n"

func testHeaders() HeaderNames {
	return HeaderNames{
		Status:   "X-Phishing-Status",
		Score:    "X-Phishing-Score",
		Findings: "X-Phishing-Findings",
	}
}

func newTestPostfixFilter(generator core.TextGenerator, opts PostfixOptions) *PostfixFilter {
	if opts.Headers == (HeaderNames{}) {
		opts.Headers = testHeaders()
	}
	if opts.Threshold == 0 {
		opts.Threshold = 25
	}
	return NewPostfixFilter(newService(generator), zap.NewNop(), opts)
}

func TestFilterMessage_TagsPhishing(t *testing.T) {
	f := newTestPostfixFilter(&stubGenerator{response: highRiskResponse}, PostfixOptions{})

	tagged, err := f.filterMessage(context.Background(), "bounce@paypa1.com", []byte(rawPhishingEmail))
	require.NoError(t, err)

	want := "X-Phishing-Status: phishing\r\n" +
		"X-Phishing-Score: 40\r\n" +
		"X-Phishing-Findings: CRITICAL=1 HIGH=1 MEDIUM=0 LOW=0\r\n" +
		rawPhishingEmail
	assert.Equal(t, want, string(tagged))
}

func TestFilterMessage_Clean(t *testing.T) {
	response := `{"is_phishing": false, "confidence_score": 0, "overall_risk_level": "LOW", "phishing_indicators": [], "reasoning": "ok"}`
	f := newTestPostfixFilter(&stubGenerator{response: response}, PostfixOptions{ModifySubject: true, BlockPhishing: true})

	tagged, err := f.filterMessage(context.Background(), "", []byte(rawPhishingEmail))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(tagged), "X-Phishing-Status: clean\r\nX-Phishing-Score: 0\r\n"))
	assert.Contains(t, string(tagged), "Subject: Verify your account\r\n")
}

func TestFilterMessage_ModifySubject(t *testing.T) {
	f := newTestPostfixFilter(&stubGenerator{response: highRiskResponse}, PostfixOptions{ModifySubject: true})

	raw := "From: a@paypa1.com\nSubject: Verify\n  your account\nDate: d\n\nbody\n"
	tagged, err := f.filterMessage(context.Background(), "", []byte(raw))
	require.NoError(t, err)

	assert.Contains(t, string(tagged), "\nSubject: [**PHISHING**] Verify your account\nDate: d\n\nbody\n")
	assert.NotContains(t, string(tagged), "\r\n", "line endings of the original message are kept")
	assert.Equal(t, 1, strings.Count(string(tagged), "Subject:"))
}

func TestFilterMessage_ModifySubjectEncoded(t *testing.T) {
	f := newTestPostfixFilter(&stubGenerator{response: highRiskResponse}, PostfixOptions{ModifySubject: true, SubjectPrefix: "[PHISH] "})

	raw := "From: a@paypa1.com\r\nSubject: =?UTF-8?B?VsOpcmlmaWV6IHZvdHJlIGNvbXB0ZQ==?=\r\nDate: d\r\n\r\nbody"
	tagged, err := f.filterMessage(context.Background(), "", []byte(raw))
	require.NoError(t, err)

	email, err := ParseRawEmail(tagged)
	require.NoError(t, err)
	assert.Equal(t, "[PHISH] Vérifiez votre compte", email.Subject)
}

func TestFilterMessage_Block(t *testing.T) {
	f := newTestPostfixFilter(&stubGenerator{response: highRiskResponse}, PostfixOptions{BlockPhishing: true})

	tagged, err := f.filterMessage(context.Background(), "", []byte(rawPhishingEmail))
	assert.Nil(t, tagged)

	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Contains(t, smtpErr.Message, "score: 40")
}

// TestFilterMessage_AnalysisError checks that model failures never block delivery
func TestFilterMessage_AnalysisError(t *testing.T) {
	f := newTestPostfixFilter(&stubGenerator{err: errors.New("upstream\r\ntimeout")}, PostfixOptions{BlockPhishing: true})

	tagged, err := f.filterMessage(context.Background(), "", []byte(rawPhishingEmail))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(tagged), "X-Phishing-Status: error\r\nX-Phishing-Analysis-Error: "))
	assert.Contains(t, string(tagged), "upstream  timeout\r\n")
	assert.NotContains(t, string(tagged), "X-Phishing-Score")
}

// TestFilterMessage_MissingDateStillAnalyzed checks that a message without a Date
// header is analyzed and blocked like any other
func TestFilterMessage_MissingDateStillAnalyzed(t *testing.T) {
	generator := &stubGenerator{response: highRiskResponse}
	f := newTestPostfixFilter(generator, PostfixOptions{Threshold: 25, BlockPhishing: true})

	raw := "From: a@paypa1.com\r\nSubject: no date\r\n\r\nbody"
	tagged, err := f.filterMessage(context.Background(), "", []byte(raw))
	assert.Nil(t, tagged)

	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Equal(t, 1, generator.calls)
}

func TestFilterMessage_NoSenderTagged(t *testing.T) {
	generator := &stubGenerator{response: highRiskResponse}
	f := newTestPostfixFilter(generator, PostfixOptions{Threshold: 25})

	tagged, err := f.filterMessage(context.Background(), "", []byte("Subject: hi\r\n\r\nbody only"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(tagged), "X-Phishing-Status: phishing\r\n"))
	assert.Equal(t, 1, generator.calls)
}

func TestSummarizeFindings(t *testing.T) {
	findings := []core.Finding{
		{Severity: core.SeverityHigh},
		{Severity: core.SeverityHigh},
		{Severity: core.SeverityLow},
	}

	assert.Equal(t, "CRITICAL=0 HIGH=2 MEDIUM=0 LOW=1", summarizeFindings(findings))
	assert.Equal(t, "CRITICAL=0 HIGH=0 MEDIUM=0 LOW=0", summarizeFindings(nil))
}

func TestReplaceSubject_Missing(t *testing.T) {
	got := replaceSubject([]byte("From: a@b.test\r\n"), "[**PHISHING**] ", "\r\n")
	assert.Equal(t, "From: a@b.test\r\nSubject: [**PHISHING**] \r\n", string(got))
}

// captureBackend is a downstream SMTP server standing in for Postfix
type captureBackend struct {
	mu       sync.Mutex
	messages [][]byte
	rcpts    []string
	received chan struct{}
}

func (b *captureBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

type captureSession struct {
	backend *captureBackend
}

func (s *captureSession) Reset()        {}
func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(string, *smtp.MailOptions) error { return nil }

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.rcpts = append(s.backend.rcpts, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, data)
	s.backend.mu.Unlock()
	s.backend.received <- struct{}{}
	return nil
}

func startCaptureServer(t *testing.T) (*captureBackend, int) {
	t.Helper()

	backend := &captureBackend{received: make(chan struct{}, 1)}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	return backend, ln.Addr().(*net.TCPAddr).Port
}

// TestPostfixFilter_RoundTrip sends a message through the filter and checks what reaches Postfix
func TestPostfixFilter_RoundTrip(t *testing.T) {
	backend, port := startCaptureServer(t)

	f := newTestPostfixFilter(&stubGenerator{response: highRiskResponse}, PostfixOptions{
		ListenAddr:     "127.0.0.1:0",
		PostfixAddr:    "127.0.0.1",
		PostfixPort:    port,
		PostfixEnabled: true,
	})
	require.NoError(t, f.Start())
	t.Cleanup(func() { _ = f.Stop() })

	err := smtp.SendMail(f.Addr(), nil, "bounce@paypa1.com", []string{"victim@example.com"}, strings.NewReader(rawPhishingEmail))
	require.NoError(t, err)

	select {
	case <-backend.received:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not re-injected")
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.messages, 1)
	assert.Equal(t, []string{"victim@example.com"}, backend.rcpts)

	delivered := backend.messages[0]
	assert.True(t, bytes.Contains(delivered, []byte("X-Phishing-Status: phishing")))
	assert.True(t, bytes.Contains(delivered, []byte("X-Phishing-Score: "+strconv.Itoa(40))))
	assert.True(t, bytes.Contains(delivered, []byte("Click here to verify: http://paypa1-verify.com")))
}
