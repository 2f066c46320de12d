package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker tells whether a sender belongs to a trusted domain
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]struct{}, len(domains))
	list := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := normalizeDomain(domain)
		if d == "" {
			continue
		}
		if _, seen := normalized[d]; !seen {
			list = append(list, d)
		}
		normalized[d] = struct{}{}
	}

	if len(list) > 0 && logger != nil {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", list))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// Len returns the number of whitelisted domains
func (c *Checker) Len() int {
	return len(c.domains)
}

// IsWhitelisted checks if the sender's domain is in the whitelist.
// Accepts bare addresses as well as "Name <addr>" forms.
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := SenderDomain(from)
	if domain == "" {
		return false
	}

	if _, ok := c.domains[domain]; ok {
		if c.logger != nil {
			c.logger.Debug("Domain is whitelisted",
				zap.String("domain", domain),
				zap.String("email", from))
		}
		return true
	}

	return false
}

// SenderDomain extracts the lowercase domain of an address, or "" if there is none
func SenderDomain(from string) string {
	addr := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return normalizeDomain(addr[at+1:])
}

func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
