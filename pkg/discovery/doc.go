// Package discovery implements Peppol dynamic discovery of access point
// endpoints.
//
// # Discovery Process
//
//  1. The participant identifier value is lower-cased, hashed with SHA-256
//     and BASE32 encoded without padding.
//
//  2. The DNS name <hash>.<scheme>.<sml-zone> is queried for U-NAPTR records.
//     The record with service "Meta:SMP" carries the SMP base URL in its
//     regexp field.
//
//  3. The SMP is asked for the ServiceMetadata of the document type at
//     <smp>/<participant>/services/<document-type>, both URI-encoded.
//
//  4. The endpoint of the matching process with the Peppol AS4 transport
//     profile that is active right now is returned.
//
// # Networks
//
//   - production: edelivery.tech.ec.europa.eu
//   - test: acc.edelivery.tech.ec.europa.eu
//
// # Usage
//
//	r := discovery.NewResolver(discovery.ResolverConfig{
//		SML: discovery.SMLClientConfig{Network: discovery.NetworkTest},
//	})
//	ep, err := r.ResolveEndpoint(ctx, discovery.NetworkTest, participant, identifier.DocTypeMLR, identifier.ProcessMLR)
//	if err != nil {
//		// lookup failed
//	}
//	if ep == nil {
//		// not supported
//	}
//
// The resolver does not cache. See package supportcache for a cache in front
// of it.
package discovery
