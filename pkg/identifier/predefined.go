package identifier

// Predefined document types and processes used by access point support code.
var (
	// DocTypeMLR is the Peppol Message Level Response 3.0 document type
	DocTypeMLR = DocumentTypeID{
		Scheme: SchemeDocumentTypeBusdox,
		Value:  "urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2::ApplicationResponse##urn:fdc:peppol.eu:poacc:trns:mlr:3::2.1",
	}
	// ProcessMLR is the Peppol BIS MLR 3 process
	ProcessMLR = ProcessID{
		Scheme: SchemeProcess,
		Value:  "urn:fdc:peppol.eu:poacc:bis:mlr:3",
	}

	// DocTypeMLS is the Peppol Message Level Status 1.0 document type
	DocTypeMLS = DocumentTypeID{
		Scheme: SchemeDocumentTypeBusdox,
		Value:  "urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2::ApplicationResponse##urn:peppol:edec:mls:1.0::2.1",
	}
	// ProcessMLS is the Peppol MLS process
	ProcessMLS = ProcessID{
		Scheme: SchemeProcess,
		Value:  "urn:peppol:edec:mls",
	}

	// DocTypeTSR is the Transaction Statistics Report 1.0 document type
	DocTypeTSR = DocumentTypeID{
		Scheme: SchemeDocumentTypeBusdox,
		Value:  "urn:fdc:peppol:transaction-statistics-report:1.0::TransactionStatisticsReport##urn:fdc:peppol.eu:edec:trns:transaction-statistics-reporting:1.0::1.0",
	}
	// DocTypeEUSR is the End User Statistics Report 1.1 document type
	DocTypeEUSR = DocumentTypeID{
		Scheme: SchemeDocumentTypeBusdox,
		Value:  "urn:fdc:peppol:end-user-statistics-report:1.1::EndUserStatisticsReport##urn:fdc:peppol.eu:edec:trns:end-user-statistics-report:1.1::1.1",
	}
	// ProcessReporting is the Peppol reporting process shared by TSR and EUSR
	ProcessReporting = ProcessID{
		Scheme: SchemeProcess,
		Value:  "urn:fdc:peppol.eu:edec:bis:reporting:1.0",
	}
)
