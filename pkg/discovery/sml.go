package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/peppol-support/pkg/identifier"
)

// Common errors
var (
	// ErrNoRecordsFound is returned when no U-NAPTR records exist for the participant
	ErrNoRecordsFound = errors.New("no SML records found for participant")
	// ErrInvalidParticipant is returned when the participant identifier is unusable
	ErrInvalidParticipant = errors.New("invalid participant identifier")
	// ErrServiceNotFound is returned when no U-NAPTR record points to an SMP
	ErrServiceNotFound = errors.New("no SMP service found in SML records")
	// ErrInvalidNAPTRRecord is returned when a NAPTR record has invalid format
	ErrInvalidNAPTRRecord = errors.New("invalid NAPTR record format")
	// ErrUnknownNetwork is returned for a network without a known SML zone
	ErrUnknownNetwork = errors.New("unknown Peppol network")
)

// ServiceSMP is the U-NAPTR service name published for Peppol SMPs
const ServiceSMP = "Meta:SMP"

// Network selects the Peppol SML the lookup runs against
type Network string

const (
	// NetworkProduction is the Peppol production network
	NetworkProduction Network = "production"
	// NetworkTest is the Peppol test network (SMK)
	NetworkTest Network = "test"
)

// SML DNS zones
const (
	ZoneProduction = "edelivery.tech.ec.europa.eu"
	ZoneTest       = "acc.edelivery.tech.ec.europa.eu"
)

// Zone returns the SML DNS zone of the network.
func (n Network) Zone() (string, error) {
	switch n {
	case NetworkProduction:
		return ZoneProduction, nil
	case NetworkTest:
		return ZoneTest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, string(n))
}

// SMLClientConfig contains configuration for the SML client
type SMLClientConfig struct {
	// Network selects the SML zone. Defaults to NetworkProduction.
	Network Network

	// Zone overrides the zone derived from Network (optional)
	Zone string

	// DNSServer is the DNS server to use for lookups (optional)
	// Format: "ip:port" (e.g., "8.8.8.8:53")
	// If empty, the first server of /etc/resolv.conf is used
	DNSServer string

	// Timeout bounds a single DNS exchange. Defaults to 5s.
	Timeout time.Duration
}

// SMLClient locates the SMP of a participant through the Peppol SML
type SMLClient struct {
	config    SMLClientConfig
	dnsClient *dns.Client
}

// NewSMLClient creates a new SML client
func NewSMLClient(config SMLClientConfig) *SMLClient {
	if config.Network == "" {
		config.Network = NetworkProduction
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	return &SMLClient{
		config:    config,
		dnsClient: &dns.Client{Timeout: config.Timeout},
	}
}

// LookupSMP returns the SMP base URL registered for the participant. An empty
// network selects the configured one.
func (c *SMLClient) LookupSMP(ctx context.Context, network Network, participant identifier.ParticipantID) (string, error) {
	queryName, err := c.queryName(network, participant)
	if err != nil {
		return "", err
	}
	return c.lookupNAPTR(ctx, queryName)
}

// queryName builds <hash>.<scheme>.<zone> for a participant.
func (c *SMLClient) queryName(network Network, participant identifier.ParticipantID) (string, error) {
	if !participant.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidParticipant, participant.URIEncoded())
	}

	if network == "" {
		network = c.config.Network
	}
	zone := c.config.Zone
	if zone == "" {
		z, err := network.Zone()
		if err != nil {
			return "", err
		}
		zone = z
	}

	return fmt.Sprintf("%s.%s.%s", hashParticipant(participant.Value), participant.Scheme, zone), nil
}

// hashParticipant returns the BASE32 encoded SHA-256 hash of the lower-cased
// identifier value, without padding.
func hashParticipant(value string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(value)))
	encoded := base32.StdEncoding.EncodeToString(hash[:])
	return strings.TrimRight(encoded, "=")
}

// lookupNAPTR performs the DNS U-NAPTR lookup and extracts the SMP URL.
func (c *SMLClient) lookupNAPTR(ctx context.Context, queryName string) (string, error) {
	dnsServer := c.config.DNSServer
	if dnsServer == "" {
		config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return "", fmt.Errorf("failed to read DNS config: %w", err)
		}
		if len(config.Servers) == 0 {
			return "", errors.New("no DNS servers configured")
		}
		dnsServer = config.Servers[0] + ":" + config.Port
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(queryName), dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := c.dnsClient.ExchangeContext(ctx, msg, dnsServer)
	if err != nil {
		return "", fmt.Errorf("DNS lookup failed for %s: %w", queryName, err)
	}

	if resp.Rcode == dns.RcodeNameError {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, queryName)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("DNS lookup failed for %s: rcode=%d", queryName, resp.Rcode)
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, queryName)
	}

	return selectRecord(records)
}

// selectRecord picks the U-NAPTR record for Meta:SMP with the lowest
// order/preference.
func selectRecord(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	for _, record := range records {
		if !strings.EqualFold(record.Flags, "U") || !strings.EqualFold(record.Service, ServiceSMP) {
			continue
		}
		if best == nil || record.Order < best.Order ||
			(record.Order == best.Order && record.Preference < best.Preference) {
			best = record
		}
	}
	if best == nil {
		return "", ErrServiceNotFound
	}
	return extractURLFromRegexp(best.Regexp)
}

// extractURLFromRegexp extracts the URL from a NAPTR regexp field.
// Format: "!<pattern>!<replacement>!", commonly "!.*!https://smp.example.com/!"
func extractURLFromRegexp(regexpField string) (string, error) {
	if regexpField == "" {
		return "", ErrInvalidNAPTRRecord
	}

	parts := strings.Split(regexpField, "!")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: invalid regexp format: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	replacement := parts[2]
	if replacement == "" {
		return "", fmt.Errorf("%w: empty URL in regexp: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	parsedURL, err := url.Parse(replacement)
	if err != nil {
		return "", fmt.Errorf("invalid URL in NAPTR record: %w", err)
	}
	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return "", fmt.Errorf("invalid URL scheme in NAPTR record: %s", parsedURL.Scheme)
	}

	return replacement, nil
}
