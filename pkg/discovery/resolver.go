package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/identifier"
)

// EndpointResolver resolves the endpoint a participant registered in a
// network for a document type and process. A nil endpoint with a nil error
// means the participant does not support the combination.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, network Network, participant identifier.ParticipantID, docType identifier.DocumentTypeID, process identifier.ProcessID) (*Endpoint, error)
}

// ResolverFunc adapts a function to EndpointResolver
type ResolverFunc func(ctx context.Context, network Network, participant identifier.ParticipantID, docType identifier.DocumentTypeID, process identifier.ProcessID) (*Endpoint, error)

// ResolveEndpoint calls f.
func (f ResolverFunc) ResolveEndpoint(ctx context.Context, network Network, participant identifier.ParticipantID, docType identifier.DocumentTypeID, process identifier.ProcessID) (*Endpoint, error) {
	return f(ctx, network, participant, docType, process)
}

// ResolverConfig contains configuration for the Peppol resolver
type ResolverConfig struct {
	SML SMLClientConfig
	SMP SMPClientConfig

	// TransportProfile restricts results to one transport profile.
	// Defaults to TransportPeppolAS4V2.
	TransportProfile string

	// Now returns the current time for activation checks (optional)
	Now func() time.Time
}

// Resolver performs Peppol dynamic discovery:
//  1. locate the SMP through the SML U-NAPTR record of the participant
//  2. read the ServiceMetadata for the document type
//  3. pick an active endpoint of the process with the configured transport profile
type Resolver struct {
	sml              *SMLClient
	smp              *SMPClient
	transportProfile string
	now              func() time.Time
}

// NewResolver creates a resolver with the given configuration.
func NewResolver(config ResolverConfig) *Resolver {
	if config.TransportProfile == "" {
		config.TransportProfile = TransportPeppolAS4V2
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Resolver{
		sml:              NewSMLClient(config.SML),
		smp:              NewSMPClient(config.SMP),
		transportProfile: config.TransportProfile,
		now:              config.Now,
	}
}

// Network returns the network used when a lookup does not name one.
func (r *Resolver) Network() Network {
	return r.sml.config.Network
}

// ResolveEndpoint implements EndpointResolver. An empty network selects the
// configured one.
// Unregistered participants, document types and processes yield (nil, nil);
// DNS, HTTP and parsing failures are returned as errors.
func (r *Resolver) ResolveEndpoint(ctx context.Context, network Network, participant identifier.ParticipantID, docType identifier.DocumentTypeID, process identifier.ProcessID) (*Endpoint, error) {
	smpURL, err := r.sml.LookupSMP(ctx, network, participant)
	if err != nil {
		if errors.Is(err, ErrNoRecordsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("SML lookup failed: %w", err)
	}

	return r.ResolveEndpointWithSMP(ctx, smpURL, participant, docType, process)
}

// ResolveEndpointWithSMP skips the SML lookup and queries a known SMP.
func (r *Resolver) ResolveEndpointWithSMP(ctx context.Context, smpURL string, participant identifier.ParticipantID, docType identifier.DocumentTypeID, process identifier.ProcessID) (*Endpoint, error) {
	metadata, err := r.smp.GetServiceMetadata(ctx, smpURL, participant, docType)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("SMP lookup failed: %w", err)
	}

	for _, p := range metadata.Processes {
		if p.ProcessID != process {
			continue
		}
		active := GetActiveEndpoints(FilterEndpointsByTransport(p.Endpoints, r.transportProfile), r.now())
		if len(active) > 0 {
			return &active[0], nil
		}
	}
	return nil, nil
}
