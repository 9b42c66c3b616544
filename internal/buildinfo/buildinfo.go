// Package buildinfo carries build-time metadata and the outcome of startup
// checks, kept apart from user configuration.
package buildinfo

import "strings"

// UnknownValue is reported for metadata the build did not inject.
const UnknownValue = "unknown"

// Context holds values injected with -ldflags at build time.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a Context.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the build version, or UnknownValue.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date, or UnknownValue.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// String renders "version (built date)".
func (c *Context) String() string {
	return c.Version() + " (built " + c.BuildDate() + ")"
}

// ValidationResult collects the findings of a model or configuration check.
type ValidationResult struct {
	// Warnings do not prevent startup
	Warnings []string `json:"warnings,omitempty"`
	// Errors prevent startup
	Errors []string `json:"errors,omitempty"`
	Valid  bool     `json:"valid"`
}

// NewValidationResult creates a result with Valid set.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddWarning records a non-fatal finding.
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AddError records a fatal finding and clears Valid.
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

// Check records err, if any, as an error.
func (r *ValidationResult) Check(err error) {
	if err != nil {
		r.AddError(err.Error())
	}
}

// HasIssues reports whether there are warnings or errors.
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}

// Summary renders one line per finding.
func (r *ValidationResult) Summary() string {
	var b strings.Builder
	for _, e := range r.Errors {
		b.WriteString("ERROR: " + e + "\n")
	}
	for _, w := range r.Warnings {
		b.WriteString("WARN:  " + w + "\n")
	}
	return b.String()
}
