// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport builds the HTTPS clients used for SMP lookups.

# TLS Configuration

Connections use TLS 1.2 or 1.3:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3

For TLS 1.2, the following cipher suites are offered:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Private Trust

An SMP of a test network may use a certificate outside the system pool:

	pool, err := transport.LoadRootCAs("/etc/peppol/smk-ca.pem")
	config := transport.DefaultHTTPSConfig()
	config.RootCAs = pool

	smp := discovery.NewSMPClient(discovery.SMPClientConfig{
	    HTTPClient: transport.NewHTTPClient(config),
	})
*/
package transport
