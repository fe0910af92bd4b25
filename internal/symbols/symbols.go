// Package symbols attributes a file location to its tightest enclosing
// named symbol, using the server's structural query when available and
// a local syntax pass as fallback.
package symbols

import (
	"codesweep/internal/protocol"
)

// Role is the collapsed symbol-kind taxonomy used for context.
type Role string

const (
	RoleMethod   Role = "Method"
	RoleFunction Role = "Function"
	RoleClass    Role = "Class"
	RoleModule   Role = "Module"
)

// specificity ranks roles for nested same-span ties. Higher wins.
var specificity = map[Role]int{
	RoleMethod:   4,
	RoleFunction: 3,
	RoleClass:    2,
	RoleModule:   1,
}

// Entry is one named span of a file. Lines are one-based, EndLine inclusive.
type Entry struct {
	Name      string
	Role      Role
	StartLine int
	EndLine   int
}

// Context is the enclosing-symbol attribution of one location.
type Context struct {
	// Name is empty for module scope
	Name string
	Role Role
	// Container is the enclosing class for methods, if known
	Container string
}

// ModuleContext is the fallback when no symbol encloses a location.
func ModuleContext() Context {
	return Context{Role: RoleModule}
}

// Resolve finds the tightest enclosing entry for line: the containing
// entry with the smallest span, roles breaking span ties by
// Method > Function > Class > Module. Returns module scope when nothing
// contains the line.
func Resolve(entries []Entry, line int) Context {
	best := -1
	bestSpan := int(^uint(0) >> 1)

	for i, e := range entries {
		if line < e.StartLine || line > e.EndLine {
			continue
		}
		span := e.EndLine - e.StartLine
		if best == -1 || span < bestSpan ||
			(span == bestSpan && specificity[e.Role] > specificity[entries[best].Role]) {
			best = i
			bestSpan = span
		}
	}

	if best == -1 {
		return ModuleContext()
	}

	ctx := Context{Name: entries[best].Name, Role: entries[best].Role}
	if ctx.Role == RoleMethod {
		ctx.Container = enclosingClass(entries, entries[best])
	}
	return ctx
}

// enclosingClass finds the smallest class span containing the method.
func enclosingClass(entries []Entry, method Entry) string {
	name := ""
	bestSpan := int(^uint(0) >> 1)
	for _, e := range entries {
		if e.Role != RoleClass {
			continue
		}
		if method.StartLine < e.StartLine || method.EndLine > e.EndLine {
			continue
		}
		if span := e.EndLine - e.StartLine; span < bestSpan {
			bestSpan = span
			name = e.Name
		}
	}
	return name
}

// FromDocumentSymbols flattens a hierarchical symbol response into
// entries, classifying functions nested in classes as methods.
func FromDocumentSymbols(ds []protocol.DocumentSymbol) []Entry {
	var out []Entry
	for _, s := range ds {
		flatten(s, false, &out)
	}
	return out
}

func flatten(s protocol.DocumentSymbol, inClass bool, out *[]Entry) {
	role := roleOf(s.Kind, inClass)
	if role != "" {
		*out = append(*out, Entry{
			Name:      s.Name,
			Role:      role,
			StartLine: s.Range.Start.Line + 1,
			EndLine:   s.Range.End.Line + 1,
		})
	}
	childInClass := inClass || s.Kind == protocol.KindClass
	for _, c := range s.Children {
		flatten(c, childInClass, out)
	}
}

// roleOf collapses protocol symbol kinds onto the context taxonomy.
// Kinds without a context role (variables, constants, fields) yield "".
func roleOf(kind protocol.SymbolKind, inClass bool) Role {
	switch kind {
	case protocol.KindMethod, protocol.KindConstructor:
		return RoleMethod
	case protocol.KindFunction:
		if inClass {
			return RoleMethod
		}
		return RoleFunction
	case protocol.KindClass:
		return RoleClass
	case protocol.KindModule, protocol.KindNamespace, protocol.KindPackage:
		return RoleModule
	default:
		return ""
	}
}
