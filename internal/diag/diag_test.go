package diag_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/diag"
)

func TestErrorfMarksResultFailed(t *testing.T) {
	r := &diag.Result{}
	r.Errorf(diag.P004, diag.Location{Module: "main", Line: 3, Column: 1}, "unable to resolve identifier: %s", "x")

	assert.True(t, r.IsFailed())
	errs, warns := r.Counts()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 0, warns)
}

func TestWarnfDoesNotMarkFailed(t *testing.T) {
	r := &diag.Result{}
	r.Warnf(diag.P018, diag.Location{}, "qualified name crosses non-namespace")

	assert.False(t, r.IsFailed())
	errs, warns := r.Counts()
	assert.Equal(t, 0, errs)
	assert.Equal(t, 1, warns)
}

func TestAllPreservesRaiseOrder(t *testing.T) {
	r := &diag.Result{}
	r.Errorf(diag.P004, diag.Location{}, "first")
	r.Warnf(diag.P018, diag.Location{}, "second")

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, diag.P004, all[0].Code)
	assert.Equal(t, diag.P018, all[1].Code)
}

func TestDiagnosticErrorFormatsLocation(t *testing.T) {
	d := diag.Diagnostic{
		Severity: diag.SeverityError,
		Code:     diag.P004,
		Message:  "boom",
		Location: diag.Location{Module: "main", Line: 2, Column: 5},
	}

	assert.Equal(t, "main:2:5: error: boom (P004)", d.Error())
}

func TestDiagnosticErrorOmitsEmptyLocation(t *testing.T) {
	d := diag.Diagnostic{Severity: diag.SeverityWarning, Code: diag.P018, Message: "boom"}

	assert.Equal(t, "warning: boom (P018)", d.Error())
}

func TestPrintWritesOneLinePerDiagnosticPlusSummary(t *testing.T) {
	r := &diag.Result{}
	r.Errorf(diag.P004, diag.Location{Module: "main"}, "bad")
	r.Warnf(diag.P018, diag.Location{Module: "main"}, "meh")

	var buf bytes.Buffer
	r.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "bad")
	assert.Contains(t, out, "meh")
	assert.Contains(t, out, "1 error(s), 1 warning(s)")
}
