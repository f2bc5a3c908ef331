package notification

import (
	"fmt"
	"strings"
)

// Severity is the ordered importance of a notification.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
)

var severityNames = map[Severity]string{
	SeverityTrace: "TRACE",
	SeverityDebug: "DEBUG",
	SeverityInfo:  "INFO",
	SeverityWarn:  "WARN",
	SeverityError: "ERROR",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SEVERITY(%d)", int(s))
}

// ParseSeverity parses a severity name case-insensitively. "warning" is accepted as WARN.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return SeverityTrace, nil
	case "DEBUG":
		return SeverityDebug, nil
	case "INFO":
		return SeverityInfo, nil
	case "WARN", "WARNING":
		return SeverityWarn, nil
	case "ERROR":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("%w: unknown severity %q", ErrInvalidArgument, s)
	}
}

// Category tags a notification with a severity and a human-readable description.
// Categories are built once at configuration time and shared read-only.
type Category struct {
	severity    Severity
	description string
}

// NewCategory creates a category. The description must not be blank.
func NewCategory(severity Severity, description string) (*Category, error) {
	if _, ok := severityNames[severity]; !ok {
		return nil, fmt.Errorf("%w: unknown severity %d", ErrInvalidArgument, int(severity))
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: category description is blank", ErrInvalidArgument)
	}
	return &Category{severity: severity, description: description}, nil
}

// MustCategory is like NewCategory but panics on invalid input.
func MustCategory(severity Severity, description string) *Category {
	c, err := NewCategory(severity, description)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Category) Severity() Severity  { return c.severity }
func (c *Category) Description() string { return c.description }

// Format renders "[severity] originator - description", e.g. a message title.
func (c *Category) Format(originator string) string {
	return fmt.Sprintf("[%s] %s - %s", strings.ToLower(c.severity.String()), originator, c.description)
}
