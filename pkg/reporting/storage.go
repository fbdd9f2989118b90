package reporting

import "context"

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

// Storage persists report and sending report records. Both operations insert
// a new record; duplicates are not detected.
//
// Implementations return an error wrapping ErrContractViolation when the
// backend broke its contract (unacknowledged write, unexpected row count).
// Any other error is an operational failure.
type Storage interface {
	StoreReport(ctx context.Context, report *ReportData) error
	StoreSendingReport(ctx context.Context, report *SendingReportData) error
}

// Truncate shortens s to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
