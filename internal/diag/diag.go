// Package diag holds the session's numbered diagnostic catalogue and the
// result aggregate every phase consults before advancing.
package diag

import (
	"fmt"
	"io"
)

// Severity levels a diagnostic can carry.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code is one of the stable codes from the diagnostic catalogue.
type Code string

const (
	P004 Code = "P004" // unresolvable identifier
	P018 Code = "P018" // qualified name crosses non-namespace
	P019 Code = "P019" // cannot infer type
	P027 Code = "P027" // target/source arity mismatch in multi-assignment
	P028 Code = "P028" // assignment to constant
	P029 Code = "P029" // constant-required kind declared with :=
	P041 Code = "P041" // bad numeric literal
	P044 Code = "P044" // directive execution failed
	P052 Code = "P052" // unknown identifier in binary operator
	P081 Code = "P081" // break/continue with no enclosing loop
	C021 Code = "C021" // module file not found / failed to compile
	C024 Code = "C024" // invalid statement
	C051 Code = "C051" // type mismatch
	C073 Code = "C073" // illegal cast
	X000 Code = "X000" // generic error placeholder
)

// Location pinpoints a diagnostic within a source module.
type Location struct {
	Module string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Module == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.Module, l.Line, l.Column)
}

// Diagnostic is a single numbered compiler message.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Location Location
}

func (d Diagnostic) Error() string {
	loc := d.Location.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s (%s)", d.Severity, d.Message, d.Code)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", loc, d.Severity, d.Message, d.Code)
}

// Result aggregates every diagnostic raised across a session run.
// Nothing is thrown: components append here and return a boolean success,
// per the error-handling design in the spec.
type Result struct {
	diagnostics []Diagnostic
}

// Add appends a diagnostic to the aggregate.
func (r *Result) Add(d Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
}

// Errorf appends an error-severity diagnostic.
func (r *Result) Errorf(code Code, loc Location, format string, args ...any) {
	r.Add(Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Location: loc})
}

// Warnf appends a warning-severity diagnostic.
func (r *Result) Warnf(code Code, loc Location, format string, args ...any) {
	r.Add(Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...), Location: loc})
}

// IsFailed reports whether any error-severity diagnostic has been raised.
func (r *Result) IsFailed() bool {
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// All returns every diagnostic raised so far, in raise order.
func (r *Result) All() []Diagnostic {
	return r.diagnostics
}

// Counts returns the number of error- and warning-severity diagnostics.
func (r *Result) Counts() (errors, warnings int) {
	for _, d := range r.diagnostics {
		switch d.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	return
}

// Print writes one line per diagnostic followed by a summary line, the way
// the compiler's own CLI driver reports failures to a terminal.
func (r *Result) Print(w io.Writer) {
	for _, d := range r.diagnostics {
		fmt.Fprintln(w, d.Error())
	}
	errs, warns := r.Counts()
	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", errs, warns)
}
