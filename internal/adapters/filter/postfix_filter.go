package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/mikey/llm-phishing-analyzer/internal/whitelist"
	"go.uber.org/zap"
)

const (
	defaultSubjectPrefix = "[**PHISHING**] "
	analysisErrorHeader  = "X-Phishing-Analysis-Error"
)

// HeaderNames names the headers added to every filtered message
type HeaderNames struct {
	Status   string
	Score    string
	Findings string
}

// PostfixOptions configures the Postfix content filter
type PostfixOptions struct {
	ListenAddr      string
	Threshold       int
	BlockPhishing   bool
	Headers         HeaderNames
	PostfixAddr     string
	PostfixPort     int
	PostfixEnabled  bool
	SubjectPrefix   string
	ModifySubject   bool
	AnalysisTimeout time.Duration
}

// PostfixFilter implements a Postfix after-queue content filter.
// Messages are received over SMTP, analyzed one at a time, tagged and
// handed back to Postfix.
type PostfixFilter struct {
	service  *core.PhishingAnalysisService
	logger   *zap.Logger
	opts     PostfixOptions
	server   *smtp.Server
	listener net.Listener

	// analysisMu serializes analyses across SMTP sessions
	analysisMu sync.Mutex
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service *core.PhishingAnalysisService, logger *zap.Logger, opts PostfixOptions) *PostfixFilter {
	if opts.SubjectPrefix == "" && opts.ModifySubject {
		opts.SubjectPrefix = defaultSubjectPrefix
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 60 * time.Second
	}

	return &PostfixFilter{
		service: service,
		logger:  logger,
		opts:    opts,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", f.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddr, err)
	}

	f.listener = ln

	f.logger.Info("Postfix filter started", zap.String("address", ln.Addr().String()))

	go func() {
		if err := f.server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the filter is listening on
func (f *PostfixFilter) Addr() string {
	if f.listener == nil {
		return f.opts.ListenAddr
	}
	return f.listener.Addr().String()
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyzes an email outside of an SMTP session
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.EmailInput) (*core.AnalysisResult, error) {
	f.analysisMu.Lock()
	defer f.analysisMu.Unlock()

	return f.service.AnalyzeEmail(ctx, email)
}

// isPhishing applies the configured score threshold
func (f *PostfixFilter) isPhishing(result *core.AnalysisResult) bool {
	return result != nil && result.Score >= f.opts.Threshold
}

// filterMessage analyzes a raw message and returns the tagged message to re-inject.
// A non-nil error means the message must be rejected.
func (f *PostfixFilter) filterMessage(ctx context.Context, sender string, rawData []byte) ([]byte, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return nil, err
	}

	email, err := EmailFromMessage(msg, sender)
	if err != nil {
		f.logger.Error("Failed to extract text content", zap.Error(err))
		return nil, err
	}

	senderDomain := whitelist.SenderDomain(email.FromAddress)
	if senderDomain == "" {
		senderDomain = "unknown"
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.AnalysisTimeout)
	defer cancel()

	// Analysis failures never block delivery; the message is tagged instead
	result, analysisErr := f.ProcessEmail(ctx, email)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", email.FromAddress),
			zap.String("sender_domain", senderDomain))
	}

	phishing := f.isPhishing(result)

	if phishing && f.opts.BlockPhishing {
		f.logger.Info("Rejecting phishing email",
			zap.String("from", email.FromAddress),
			zap.String("sender_domain", senderDomain),
			zap.Int("score", result.Score),
			zap.String("model", result.ModelUsed))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (score: %d)", result.Score),
		}
	}

	tagged := f.tagMessage(rawData, msg.Header.Get("Subject"), result, analysisErr)

	fields := []zap.Field{
		zap.String("from", email.FromAddress),
		zap.String("sender_domain", senderDomain),
		zap.Bool("is_phishing", phishing),
	}
	if result != nil {
		fields = append(fields, zap.Int("score", result.Score), zap.String("model", result.ModelUsed))
	}
	f.logger.Info("Processed email", fields...)

	return tagged, nil
}

// tagMessage prepends the analysis headers to the raw message and optionally
// rewrites the subject. The original header order, line endings and body are preserved.
func (f *PostfixFilter) tagMessage(rawData []byte, originalSubject string, result *core.AnalysisResult, analysisErr error) []byte {
	headerBlock, body, eol := splitMessage(rawData)
	phishing := f.isPhishing(result)

	var out bytes.Buffer
	writeHeader := func(name, value string) {
		out.WriteString(name)
		out.WriteString(": ")
		out.WriteString(headerSafe(value))
		out.WriteString(eol)
	}

	if analysisErr != nil {
		writeHeader(f.opts.Headers.Status, "error")
		writeHeader(analysisErrorHeader, analysisErr.Error())
	} else {
		status := "clean"
		if phishing {
			status = "phishing"
		}
		writeHeader(f.opts.Headers.Status, status)
		writeHeader(f.opts.Headers.Score, strconv.Itoa(result.Score))
		writeHeader(f.opts.Headers.Findings, summarizeFindings(result.Findings))
	}

	if phishing && f.opts.ModifySubject && f.opts.SubjectPrefix != "" {
		decodedSubject, err := decodeEncodedHeader(originalSubject)
		if err != nil {
			decodedSubject = originalSubject
		}
		if !strings.HasPrefix(decodedSubject, f.opts.SubjectPrefix) {
			headerBlock = replaceSubject(headerBlock, encodeHeader(f.opts.SubjectPrefix+decodedSubject), eol)
		}
	}

	out.Write(headerBlock)
	out.WriteString(eol)
	out.Write(body)
	return out.Bytes()
}

// splitMessage splits a raw message into its header block and body.
// The header block keeps its final line ending; eol is the line ending in use.
func splitMessage(raw []byte) (header, body []byte, eol string) {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx+2], raw[idx+4:], "\r\n"
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx+1], raw[idx+2:], "\n"
	}
	return raw, nil, "\r\n"
}

// replaceSubject swaps the Subject header, including folded continuation lines.
// A Subject header is appended when none exists.
func replaceSubject(headerBlock []byte, subject, eol string) []byte {
	lines := strings.SplitAfter(string(headerBlock), "\n")
	var out strings.Builder
	replaced := false
	skipping := false

	for _, line := range lines {
		if line == "" {
			continue
		}
		if skipping && (line[0] == ' ' || line[0] == '\t') {
			continue
		}
		skipping = false
		if !replaced && len(line) >= 8 && strings.EqualFold(line[:8], "subject:") {
			out.WriteString("Subject: " + subject + eol)
			replaced = true
			skipping = true
			continue
		}
		out.WriteString(line)
	}
	if !replaced {
		out.WriteString("Subject: " + subject + eol)
	}
	return []byte(out.String())
}

// encodeHeader encodes non-ASCII header values as RFC 2047 words
func encodeHeader(value string) string {
	for _, r := range value {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", value)
		}
	}
	return value
}

// summarizeFindings renders severity counts, e.g. "CRITICAL=1 HIGH=1 MEDIUM=0 LOW=0"
func summarizeFindings(findings []core.Finding) string {
	counts := make(map[core.Severity]int)
	for _, finding := range findings {
		counts[finding.Severity]++
	}
	return fmt.Sprintf("CRITICAL=%d HIGH=%d MEDIUM=%d LOW=%d",
		counts[core.SeverityCritical],
		counts[core.SeverityHigh],
		counts[core.SeverityMedium],
		counts[core.SeverityLow])
}

func headerSafe(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.opts.PostfixAddr, fmt.Sprintf("%d", f.opts.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted at this point
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message and forwards the tagged copy to Postfix
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	tagged, err := s.filter.filterMessage(context.Background(), s.sender, rawData)
	if err != nil {
		return err
	}

	if !s.filter.opts.PostfixEnabled {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}

	if err := s.filter.sendToPostfix(s.sender, s.recipients, tagged); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
