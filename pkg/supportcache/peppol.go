package supportcache

import (
	"github.com/sirosfoundation/peppol-support/pkg/discovery"
	"github.com/sirosfoundation/peppol-support/pkg/identifier"
)

// NewMLRCache creates a cache for Peppol Message Level Response 3.0 support.
func NewMLRCache(network discovery.Network, resolver discovery.EndpointResolver, opts ...Option) *Cache {
	return New(Config{
		Name:         "MLR",
		Network:      network,
		DocumentType: identifier.DocTypeMLR,
		Process:      identifier.ProcessMLR,
	}, resolver, opts...)
}

// NewMLSCache creates a cache for Peppol Message Level Status 1.0 support.
func NewMLSCache(network discovery.Network, resolver discovery.EndpointResolver, opts ...Option) *Cache {
	return New(Config{
		Name:         "MLS",
		Network:      network,
		DocumentType: identifier.DocTypeMLS,
		Process:      identifier.ProcessMLS,
	}, resolver, opts...)
}
