package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/identifier"
)

const serviceMetadataXML = `<?xml version="1.0" encoding="UTF-8"?>
<SignedServiceMetadata xmlns="http://busdox.org/serviceMetadata/publishing/1.0/">
  <ServiceMetadata>
    <ServiceInformation>
      <ParticipantIdentifier scheme="iso6523-actorid-upis">0088:7315458756324</ParticipantIdentifier>
      <DocumentIdentifier scheme="busdox-docid-qns">urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2::ApplicationResponse##urn:fdc:peppol.eu:poacc:trns:mlr:3::2.1</DocumentIdentifier>
      <ProcessList>
        <Process>
          <ProcessIdentifier scheme="cenbii-procid-ubl">urn:fdc:peppol.eu:poacc:bis:mlr:3</ProcessIdentifier>
          <ServiceEndpointList>
            <Endpoint transportProfile="peppol-transport-as4-v2_0">
              <EndpointReference xmlns="http://www.w3.org/2005/08/addressing">
                <Address>https://ap.example.com/as4</Address>
              </EndpointReference>
              <Certificate>MIICxTCCAa2gAwIBAgI...</Certificate>
              <ServiceActivationDate>2024-01-01T00:00:00Z</ServiceActivationDate>
              <ServiceExpirationDate>2099-12-31T23:59:59Z</ServiceExpirationDate>
              <TechnicalContactUrl>mailto:support@example.com</TechnicalContactUrl>
              <ServiceDescription>Production AS4 endpoint</ServiceDescription>
            </Endpoint>
          </ServiceEndpointList>
        </Process>
      </ProcessList>
    </ServiceInformation>
  </ServiceMetadata>
</SignedServiceMetadata>`

func TestSMPClientConfig(t *testing.T) {
	client := NewSMPClient(SMPClientConfig{})
	if client.config.UserAgent != "peppol-support-smp-client/1.0" {
		t.Errorf("default UserAgent = %s", client.config.UserAgent)
	}
	if client.httpClient == nil {
		t.Error("default HTTP client should be set")
	}
}

func TestFormatServiceMetadataURL(t *testing.T) {
	participant := identifier.NewParticipantID("0088:123")

	tests := []struct {
		name   string
		smpURL string
		want   string
	}{
		{
			name:   "simple URL",
			smpURL: "https://smp.example.com",
			want:   "https://smp.example.com/iso6523-actorid-upis::0088:123/services/busdox-docid-qns::urn:peppol:edec:mls",
		},
		{
			name:   "URL with trailing slash",
			smpURL: "https://smp.example.com/",
			want:   "https://smp.example.com/iso6523-actorid-upis::0088:123/services/busdox-docid-qns::urn:peppol:edec:mls",
		},
	}

	docType := identifier.DocumentTypeID{Scheme: identifier.SchemeDocumentTypeBusdox, Value: "urn:peppol:edec:mls"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatServiceMetadataURL(tt.smpURL, participant, docType)
			if got != tt.want {
				t.Errorf("formatServiceMetadataURL() = %s, want %s", got, tt.want)
			}
		})
	}

	// '#' must not start a fragment
	got := formatServiceMetadataURL("https://smp.example.com", participant, identifier.DocTypeMLR)
	if !strings.Contains(got, "%23%23") {
		t.Errorf("document type separator not escaped: %s", got)
	}
}

func TestGetServiceMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/xml" {
			t.Errorf("Accept header = %s, want application/xml", r.Header.Get("Accept"))
		}
		if !strings.HasPrefix(r.URL.Path, "/iso6523-actorid-upis::0088:7315458756324/services/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(serviceMetadataXML))
	}))
	defer server.Close()

	client := NewSMPClient(SMPClientConfig{})
	sm, err := client.GetServiceMetadata(context.Background(), server.URL,
		identifier.NewParticipantID("0088:7315458756324"), identifier.DocTypeMLR)
	if err != nil {
		t.Fatalf("GetServiceMetadata() error = %v", err)
	}

	if sm.ParticipantID != "0088:7315458756324" {
		t.Errorf("ParticipantID = %s", sm.ParticipantID)
	}
	if len(sm.Processes) != 1 {
		t.Fatalf("Processes count = %d, want 1", len(sm.Processes))
	}
	process := sm.Processes[0]
	if process.ProcessID != identifier.ProcessMLR {
		t.Errorf("ProcessID = %v, want %v", process.ProcessID, identifier.ProcessMLR)
	}
	if len(process.Endpoints) != 1 {
		t.Fatalf("Endpoints count = %d, want 1", len(process.Endpoints))
	}
	endpoint := process.Endpoints[0]
	if endpoint.TransportProfile != TransportPeppolAS4V2 {
		t.Errorf("TransportProfile = %s", endpoint.TransportProfile)
	}
	if endpoint.EndpointURL != "https://ap.example.com/as4" {
		t.Errorf("EndpointURL = %s", endpoint.EndpointURL)
	}
	if endpoint.ServiceActivationDate == nil || endpoint.ServiceExpirationDate == nil {
		t.Error("activation window should be parsed")
	}
}

func TestGetServiceMetadataRedirect(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serviceMetadataXML))
	}))
	defer target.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<SignedServiceMetadata><ServiceMetadata><Redirect href="` + target.URL + `/redirected"/></ServiceMetadata></SignedServiceMetadata>`))
	}))
	defer origin.Close()

	client := NewSMPClient(SMPClientConfig{})
	sm, err := client.GetServiceMetadata(context.Background(), origin.URL,
		identifier.NewParticipantID("0088:7315458756324"), identifier.DocTypeMLR)
	if err != nil {
		t.Fatalf("GetServiceMetadata() error = %v", err)
	}
	if len(sm.Processes) != 1 {
		t.Errorf("Processes count = %d, want 1", len(sm.Processes))
	}
}

func TestSMPClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewSMPClient(SMPClientConfig{})
	_, err := client.GetServiceMetadata(context.Background(), server.URL,
		identifier.NewParticipantID("0088:unknown"), identifier.DocTypeMLS)
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestFilterEndpointsByTransport(t *testing.T) {
	endpoints := []Endpoint{
		{TransportProfile: TransportPeppolAS4V2, EndpointURL: "https://ap1.example.com/as4"},
		{TransportProfile: "busdox-transport-as2-ver1p0", EndpointURL: "https://ap2.example.com/as2"},
		{TransportProfile: TransportPeppolAS4V2, EndpointURL: "https://ap3.example.com/as4"},
	}

	filtered := FilterEndpointsByTransport(endpoints, TransportPeppolAS4V2)
	if len(filtered) != 2 {
		t.Errorf("filtered count = %d, want 2", len(filtered))
	}
}

func TestGetActiveEndpoints(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	farFuture := now.Add(365 * 24 * time.Hour)

	endpoints := []Endpoint{
		{EndpointURL: "https://active.example.com", ServiceActivationDate: &past, ServiceExpirationDate: &farFuture},
		{EndpointURL: "https://expired.example.com", ServiceActivationDate: &past, ServiceExpirationDate: &past},
		{EndpointURL: "https://not-yet-active.example.com", ServiceActivationDate: &future, ServiceExpirationDate: &farFuture},
		{EndpointURL: "https://no-dates.example.com"},
	}

	active := GetActiveEndpoints(endpoints, now)
	if len(active) != 2 {
		t.Fatalf("active count = %d, want 2", len(active))
	}
	if active[0].EndpointURL != "https://active.example.com" || active[1].EndpointURL != "https://no-dates.example.com" {
		t.Errorf("unexpected active endpoints: %+v", active)
	}
}

func TestParseXSDDateTime(t *testing.T) {
	for _, s := range []string{"2024-01-01T00:00:00Z", "2024-01-01T00:00:00.123+01:00", "2024-01-01T00:00:00", "2024-01-01"} {
		if parseXSDDateTime(s) == nil {
			t.Errorf("parseXSDDateTime(%q) = nil", s)
		}
	}
	if parseXSDDateTime("") != nil || parseXSDDateTime("yesterday") != nil {
		t.Error("invalid values should yield nil")
	}
}
