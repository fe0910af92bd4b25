package protocol

import (
	"encoding/json"
	"strconv"
)

// DiagnosticSeverity is the protocol-level severity of a diagnostic.
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

func (s DiagnosticSeverity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInformation:
		return "Information"
	case SeverityHint:
		return "Hint"
	default:
		return "Unknown"
	}
}

// ParseSeverity converts a name to a DiagnosticSeverity. Zero means "none".
func ParseSeverity(s string) DiagnosticSeverity {
	switch s {
	case "Error", "error":
		return SeverityError
	case "Warning", "warning":
		return SeverityWarning
	case "Information", "information", "Info", "info":
		return SeverityInformation
	case "Hint", "hint":
		return SeverityHint
	default:
		return 0
	}
}

// Position is a zero-based line/character position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [start, end) span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// CodeValue tolerates servers that send diagnostic codes as numbers.
type CodeValue string

func (c *CodeValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = CodeValue(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*c = CodeValue(strconv.FormatInt(n, 10))
		return nil
	}
	*c = ""
	return nil
}

// Diagnostic is one issue as delivered on the wire.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     CodeValue          `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// SymbolKind is the protocol symbol kind enumeration.
type SymbolKind int

const (
	KindFile        SymbolKind = 1
	KindModule      SymbolKind = 2
	KindNamespace   SymbolKind = 3
	KindPackage     SymbolKind = 4
	KindClass       SymbolKind = 5
	KindMethod      SymbolKind = 6
	KindConstructor SymbolKind = 9
	KindFunction    SymbolKind = 12
)

// DocumentSymbol is a hierarchical symbol entry.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// Location ties a range to a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// SymbolInformation is the flat (legacy) symbol response shape.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// RawDiagnostic is a diagnostic normalized out of the wire format.
// Lines and columns are one-based. Immutable once produced.
type RawDiagnostic struct {
	File      string             `json:"file"`
	Line      int                `json:"line"`
	Column    int                `json:"column"`
	EndLine   int                `json:"endLine"`
	EndColumn int                `json:"endColumn"`
	Severity  DiagnosticSeverity `json:"severity"`
	Code      string             `json:"code,omitempty"`
	Source    string             `json:"source,omitempty"`
	Message   string             `json:"message"`
}

// toRaw converts a wire diagnostic for path into the normalized form.
func toRaw(path string, d Diagnostic) RawDiagnostic {
	sev := d.Severity
	if sev == 0 {
		sev = SeverityInformation
	}
	return RawDiagnostic{
		File:      path,
		Line:      d.Range.Start.Line + 1,
		Column:    d.Range.Start.Character + 1,
		EndLine:   d.Range.End.Line + 1,
		EndColumn: d.Range.End.Character + 1,
		Severity:  sev,
		Code:      string(d.Code),
		Source:    d.Source,
		Message:   d.Message,
	}
}
