// Package reporting validates, stores and sends the periodic Peppol network
// reports: the Transaction Statistics Report (TSR) and the End User
// Statistics Report (EUSR).
//
// # Validate and store
//
// [Support.ValidateAndStore] serializes a report, runs the rule checker over
// the markup and stores the result together with its validity. Invalid reports
// are stored too. The call succeeds only if the report is valid and stored.
//
// # Send and record
//
// [Support.SendAndRecord] hands the markup to a caller supplied sender and
// stores the returned receipt. A failed send stores nothing.
//
// # Failures
//
// Expected failures (invalid report, unreachable backend, failed send) are
// reported as [Failure] plus messages to the warning and error handlers.
// Only contract violations are returned as errors; they wrap
// [ErrContractViolation].
//
// # Storage
//
// Backends implement [Storage]:
//
//   - filestore: one XML file per record below a base directory
//   - mongostore: one document per record in MongoDB
//   - sqlstore: one row per record in PostgreSQL or SQLite
package reporting
