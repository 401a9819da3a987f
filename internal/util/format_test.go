package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateDiagnostic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short error", TruncateDiagnostic("short error"))
	assert.Equal(t, strings.Repeat("x", MaxDiagnosticLen),
		TruncateDiagnostic(strings.Repeat("x", MaxDiagnosticLen)))

	long := strings.Repeat("x", MaxDiagnosticLen+50)
	got := TruncateDiagnostic(long)
	assert.Len(t, got, MaxDiagnosticLen+len("...(truncated)"))
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
}
