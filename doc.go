// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package peppolsupport provides building blocks that a Peppol access point
needs next to its AS4 transport: knowing whether a receiver supports Message
Level Responses and Message Level Status, and producing, storing and
sending the mandatory Peppol reports.

# Overview

Two concerns are covered:

  - Support caching. Before sending an MLR or MLS to a participant the
    access point checks, through Peppol dynamic discovery, whether the
    participant accepts that document. Lookups are cached per participant
    with a fixed lifetime; a failed lookup is cached as "not supported".
  - Reporting. Transaction Statistics Reports (TSR) and End User Statistics
    Reports (EUSR) are serialized, checked against business rules, stored
    together with their validity, sent through a caller supplied sender and
    the sending outcome is stored as well.

# Specifications Implemented

  - Peppol Policy for use of Identifiers 4.x
  - Peppol Business Message Envelope and SML/SMP 1.0 (BDXL U-NAPTR lookup)
  - Peppol Message Level Response 3.0 and Message Level Status 1.0
  - Peppol Transaction Statistics Reporting 1.0
  - Peppol End User Statistics Reporting 1.1

# Package Structure

	github.com/sirosfoundation/peppol-support/pkg/identifier           - Participant, document type and process IDs
	github.com/sirosfoundation/peppol-support/pkg/discovery            - SML and SMP lookup of receiver endpoints
	github.com/sirosfoundation/peppol-support/pkg/expiring             - Expiring entries and entry stores
	github.com/sirosfoundation/peppol-support/pkg/expiring/redisstore  - Redis backed entry store
	github.com/sirosfoundation/peppol-support/pkg/supportcache         - MLR/MLS support caches
	github.com/sirosfoundation/peppol-support/pkg/reporting            - Report validation, storage and sending
	github.com/sirosfoundation/peppol-support/pkg/reporting/report     - TSR and EUSR documents
	github.com/sirosfoundation/peppol-support/pkg/reporting/rules      - CEL business rules
	github.com/sirosfoundation/peppol-support/pkg/reporting/filestore  - File system report storage
	github.com/sirosfoundation/peppol-support/pkg/reporting/mongostore - MongoDB report storage
	github.com/sirosfoundation/peppol-support/pkg/reporting/sqlstore   - PostgreSQL and SQLite report storage
	github.com/sirosfoundation/peppol-support/pkg/metrics              - Prometheus metrics

# Quick Start

Checking MLR support:

	resolver := discovery.NewResolver(discovery.ResolverConfig{})
	cache := supportcache.NewMLRCache(discovery.NetworkProduction, resolver)

	ok, err := cache.IsSupported(ctx, identifier.NewParticipantID("0088:7315458756324"))

Validating and storing a report:

	checker, _ := rules.NewDefaultChecker()
	storage, _ := filestore.New("/var/lib/peppol/reports")
	support := reporting.NewSupport(
	    reporting.NewValidator(report.NewMarshaller(), checker, logger),
	    storage,
	)

	tsr := report.NewTSR("POP000123", 2024, time.May)
	result, err := support.ValidateAndStore(ctx, tsr, func(markup []byte) {
	    // keep the markup for sending
	})

# License

BSD-2-Clause License
*/
package peppolsupport
