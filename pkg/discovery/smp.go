package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/identifier"
)

// SMP errors
var (
	// ErrParticipantNotFound is returned when the SMP does not know the participant
	// or the document type for it
	ErrParticipantNotFound = errors.New("participant not found in SMP")
	// ErrProcessNotFound is returned when the process is not registered
	ErrProcessNotFound = errors.New("process not found")
	// ErrRedirectLoop is returned when SMP redirects exceed the limit
	ErrRedirectLoop = errors.New("too many SMP redirects")
)

const maxRedirects = 3

// Transport profiles
const (
	// TransportPeppolAS4V2 is the Peppol AS4 v2 transport profile
	TransportPeppolAS4V2 = "peppol-transport-as4-v2_0"
)

// SMPClientConfig contains configuration for the SMP client
type SMPClientConfig struct {
	// HTTPClient is the HTTP client to use (optional)
	// If nil, a default client with 30s timeout is used
	HTTPClient *http.Client

	// UserAgent is the User-Agent header to send
	UserAgent string
}

// SMPClient queries Peppol SMP 1.0 service metadata
type SMPClient struct {
	config     SMPClientConfig
	httpClient *http.Client
}

// NewSMPClient creates a new SMP client
func NewSMPClient(config SMPClientConfig) *SMPClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if config.UserAgent == "" {
		config.UserAgent = "peppol-support-smp-client/1.0"
	}
	return &SMPClient{
		config:     config,
		httpClient: client,
	}
}

// ServiceMetadata represents SMP ServiceMetadata
type ServiceMetadata struct {
	ParticipantID string
	DocumentType  string
	Processes     []ProcessMetadata
}

// ProcessMetadata represents a process within ServiceMetadata
type ProcessMetadata struct {
	ProcessID identifier.ProcessID
	Endpoints []Endpoint
}

// Endpoint is the directory-resolved connection information of a participant
type Endpoint struct {
	// TransportProfile is the transport protocol (e.g. "peppol-transport-as4-v2_0")
	TransportProfile string `json:"transportProfile"`
	// EndpointURL is the URL of the access point
	EndpointURL string `json:"endpointUrl"`
	// Certificate is the access point certificate in Base64 encoding
	Certificate string `json:"certificate,omitempty"`
	// ServiceActivationDate is when the service becomes active
	ServiceActivationDate *time.Time `json:"serviceActivationDate,omitempty"`
	// ServiceExpirationDate is when the service expires
	ServiceExpirationDate *time.Time `json:"serviceExpirationDate,omitempty"`
	TechnicalContactURL   string     `json:"technicalContactUrl,omitempty"`
	Description           string     `json:"description,omitempty"`
}

// IsActive reports whether now is inside the activation window.
func (e Endpoint) IsActive(now time.Time) bool {
	if e.ServiceActivationDate != nil && e.ServiceActivationDate.After(now) {
		return false
	}
	if e.ServiceExpirationDate != nil && e.ServiceExpirationDate.Before(now) {
		return false
	}
	return true
}

// GetServiceMetadata retrieves ServiceMetadata for a participant and document type.
// A Redirect answer is followed to the referenced SMP.
func (c *SMPClient) GetServiceMetadata(ctx context.Context, smpURL string, participant identifier.ParticipantID, docType identifier.DocumentTypeID) (*ServiceMetadata, error) {
	reqURL := formatServiceMetadataURL(smpURL, participant, docType)

	for i := 0; i <= maxRedirects; i++ {
		body, err := c.doRequest(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		var ssm smp10SignedServiceMetadata
		if err := xml.Unmarshal(body, &ssm); err != nil {
			return nil, fmt.Errorf("failed to parse ServiceMetadata: %w", err)
		}
		if href := ssm.ServiceMetadata.Redirect.Href; href != "" {
			reqURL = href
			continue
		}
		return ssm.toServiceMetadata(), nil
	}

	return nil, ErrRedirectLoop
}

// formatServiceMetadataURL constructs <smp>/<participant>/services/<doctype>.
func formatServiceMetadataURL(smpURL string, participant identifier.ParticipantID, docType identifier.DocumentTypeID) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s/services/%s", base,
		url.PathEscape(participant.URIEncoded()),
		url.PathEscape(docType.URIEncoded()))
}

// doRequest performs an HTTP request and returns the response body.
func (c *SMPClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SMP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrParticipantNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SMP returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

type smp10Identifier struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

// SMP 1.0 XML structures
type smp10SignedServiceMetadata struct {
	XMLName         xml.Name `xml:"SignedServiceMetadata"`
	ServiceMetadata struct {
		Redirect struct {
			Href string `xml:"href,attr"`
		} `xml:"Redirect"`
		ServiceInformation struct {
			ParticipantIdentifier smp10Identifier `xml:"ParticipantIdentifier"`
			DocumentIdentifier    smp10Identifier `xml:"DocumentIdentifier"`
			ProcessList           struct {
				Processes []struct {
					ProcessIdentifier   smp10Identifier `xml:"ProcessIdentifier"`
					ServiceEndpointList struct {
						Endpoints []struct {
							TransportProfile      string `xml:"transportProfile,attr"`
							EndpointURI           string `xml:"EndpointURI"`
							EndpointReference     string `xml:"EndpointReference>Address"`
							Certificate           string `xml:"Certificate"`
							ServiceActivationDate string `xml:"ServiceActivationDate"`
							ServiceExpirationDate string `xml:"ServiceExpirationDate"`
							TechnicalContactURL   string `xml:"TechnicalContactUrl"`
							ServiceDescription    string `xml:"ServiceDescription"`
						} `xml:"Endpoint"`
					} `xml:"ServiceEndpointList"`
				} `xml:"Process"`
			} `xml:"ProcessList"`
		} `xml:"ServiceInformation"`
	} `xml:"ServiceMetadata"`
}

func (ssm *smp10SignedServiceMetadata) toServiceMetadata() *ServiceMetadata {
	si := ssm.ServiceMetadata.ServiceInformation
	result := &ServiceMetadata{
		ParticipantID: si.ParticipantIdentifier.Value,
		DocumentType:  si.DocumentIdentifier.Value,
	}

	for _, p := range si.ProcessList.Processes {
		pm := ProcessMetadata{
			ProcessID: identifier.ProcessID{
				Scheme: strings.TrimSpace(p.ProcessIdentifier.Scheme),
				Value:  strings.TrimSpace(p.ProcessIdentifier.Value),
			},
		}
		for _, ep := range p.ServiceEndpointList.Endpoints {
			endpoint := Endpoint{
				TransportProfile:    ep.TransportProfile,
				EndpointURL:         strings.TrimSpace(ep.EndpointURI),
				Certificate:         strings.TrimSpace(ep.Certificate),
				TechnicalContactURL: ep.TechnicalContactURL,
				Description:         ep.ServiceDescription,
			}
			if endpoint.EndpointURL == "" {
				endpoint.EndpointURL = strings.TrimSpace(ep.EndpointReference)
			}
			endpoint.ServiceActivationDate = parseXSDDateTime(ep.ServiceActivationDate)
			endpoint.ServiceExpirationDate = parseXSDDateTime(ep.ServiceExpirationDate)
			pm.Endpoints = append(pm.Endpoints, endpoint)
		}
		result.Processes = append(result.Processes, pm)
	}

	return result
}

// parseXSDDateTime accepts xs:dateTime with or without zone, and xs:date.
func parseXSDDateTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// FilterEndpointsByTransport filters endpoints by transport profile.
func FilterEndpointsByTransport(endpoints []Endpoint, transportProfile string) []Endpoint {
	var result []Endpoint
	for _, ep := range endpoints {
		if ep.TransportProfile == transportProfile {
			result = append(result, ep)
		}
	}
	return result
}

// GetActiveEndpoints filters endpoints to those active at now.
func GetActiveEndpoints(endpoints []Endpoint, now time.Time) []Endpoint {
	var result []Endpoint
	for _, ep := range endpoints {
		if ep.IsActive(now) {
			result = append(result, ep)
		}
	}
	return result
}
