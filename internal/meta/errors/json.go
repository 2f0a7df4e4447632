package errors

import (
	"encoding/json"
)

// jsonError is the wire shape of a MetaDataError
type jsonError struct {
	Phase    string   `json:"phase"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Class    string   `json:"class,omitempty"`
	Member   string   `json:"member,omitempty"`
	Severity Severity `json:"severity"`
	Chain    []string `json:"chain,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// MarshalJSON implements json.Marshaler for MetaDataError
func (e *MetaDataError) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonError{
		Phase:    e.Phase,
		Code:     e.Code,
		Message:  e.Message,
		Class:    e.Class,
		Member:   e.Member,
		Severity: e.Severity,
		Chain:    e.Chain,
		Hint:     e.Hint,
	})
}

// JSONOutput represents the JSON structure for error output
type JSONOutput struct {
	Status   string           `json:"status"`
	Errors   []*MetaDataError `json:"errors"`
	Warnings []*MetaDataError `json:"warnings"`
	Summary  Summary          `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	TotalCount   int `json:"total_count"`
}

// FormatAsJSON formats the collector's contents as indented JSON
func (c *Collector) FormatAsJSON() (string, error) {
	status := "success"
	if len(c.errors) > 0 {
		status = "error"
	} else if len(c.warnings) > 0 {
		status = "warning"
	}

	output := JSONOutput{
		Status:   status,
		Errors:   c.errors,
		Warnings: c.warnings,
		Summary: Summary{
			ErrorCount:   len(c.errors),
			WarningCount: len(c.warnings),
			TotalCount:   len(c.errors) + len(c.warnings),
		},
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
