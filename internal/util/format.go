package util //nolint:revive // package name util hosts shared formatting helpers

// MaxDiagnosticLen bounds the error text persisted on a job row.
const MaxDiagnosticLen = 500

// TruncateDiagnostic shortens error text for storage, marking truncation.
func TruncateDiagnostic(s string) string {
	if len(s) <= MaxDiagnosticLen {
		return s
	}
	return s[:MaxDiagnosticLen] + "...(truncated)"
}
