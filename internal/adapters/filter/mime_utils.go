package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"golang.org/x/text/encoding/ianaindex"
)

const noTextContent = "[No text content found in multipart message]"

// headerDecoder decodes RFC 2047 encoded words in any charset known to IANA
var headerDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.MIME.Encoding(charset)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
		}
		if enc == nil {
			return nil, fmt.Errorf("unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// decodeEncodedHeader decodes a header value that may contain encoded words
func decodeEncodedHeader(value string) (string, error) {
	return headerDecoder.DecodeHeader(value)
}

// ParseRawEmail parses an RFC 822 message into an analysis input
func ParseRawEmail(raw []byte) (*core.EmailInput, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}
	return EmailFromMessage(msg, "")
}

// EmailFromMessage builds an analysis input from a parsed message.
// envelopeFrom is used when the message has no From header.
// The message body is consumed.
func EmailFromMessage(msg *mail.Message, envelopeFrom string) (*core.EmailInput, error) {
	content, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	from := decodeOrRaw(msg.Header.Get("From"))
	if from == "" {
		from = envelopeFrom
	}

	return &core.EmailInput{
		FromAddress: from,
		Subject:     decodeOrRaw(msg.Header.Get("Subject")),
		Date:        msg.Header.Get("Date"),
		Content:     content,
	}, nil
}

func decodeOrRaw(value string) string {
	decoded, err := decodeEncodedHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractTextFromMessage extracts the text content from an email message.
// For multipart messages, text/plain parts are preferred over text/html.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	encoding := msg.Header.Get("Content-Transfer-Encoding")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(decodeTransferEncoding(msg.Body, encoding))
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	var plain, html bytes.Buffer
	if err := collectTextParts(multipart.NewReader(msg.Body, boundary), &plain, &html); err != nil {
		if plain.Len() == 0 && html.Len() == 0 {
			return "", err
		}
		// Keep whatever was read before the malformed part
	}

	switch {
	case plain.Len() > 0:
		return plain.String(), nil
	case html.Len() > 0:
		return html.String(), nil
	default:
		return noTextContent, nil
	}
}

// collectTextParts walks a multipart body, descending into nested multiparts
func collectTextParts(mr *multipart.Reader, plain, html *bytes.Buffer) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			if boundary, ok := params["boundary"]; ok {
				if err := collectTextParts(multipart.NewReader(part, boundary), plain, html); err != nil {
					return err
				}
			}
		case mediaType == "text/plain" || mediaType == "text/html":
			if isAttachment(part) {
				continue
			}
			// multipart.Part already decodes quoted-printable
			data, err := io.ReadAll(decodeTransferEncoding(part, part.Header.Get("Content-Transfer-Encoding")))
			if err != nil {
				continue
			}
			target := plain
			if mediaType == "text/html" {
				target = html
			}
			target.Write(data)
			target.WriteString("\n")
		}
	}
}

func isAttachment(part *multipart.Part) bool {
	disposition, _, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

func decodeTransferEncoding(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
