package symbols

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammar binds a tree-sitter language to the capture query that finds
// its named spans.
type grammar struct {
	language *sitter.Language
	query    string
}

var grammars = map[string]grammar{
	"python": {
		language: python.GetLanguage(),
		query: `
			(function_definition) @function
			(class_definition) @class
		`,
	},
	"javascript": {
		language: javascript.GetLanguage(),
		query: `
			(function_declaration) @function
			(method_definition) @method
			(class_declaration) @class
		`,
	},
	"typescript": {
		language: typescript.GetLanguage(),
		query: `
			(function_declaration) @function
			(method_definition) @method
			(class_declaration) @class
		`,
	},
	"go": {
		language: golang.GetLanguage(),
		query: `
			(function_declaration) @function
			(method_declaration) @method
		`,
	},
}

// SupportsLocal reports whether a local syntax pass exists for the language.
func SupportsLocal(language string) bool {
	_, ok := grammars[language]
	return ok
}

// Local parses source with tree-sitter and extracts named spans. It is
// the fallback used when the server's structural query fails or comes
// back empty.
func Local(ctx context.Context, language string, source []byte) ([]Entry, error) {
	g, ok := grammars[language]
	if !ok {
		return nil, fmt.Errorf("no local grammar for language: %s", language)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g.language)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	defer tree.Close()

	query, err := sitter.NewQuery([]byte(g.query), g.language)
	if err != nil {
		return nil, fmt.Errorf("bad symbol query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var entries []Entry
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			node := capture.Node
			name := nodeName(node, source)
			if name == "" {
				continue
			}
			entries = append(entries, Entry{
				Name:      name,
				Role:      captureRole(query.CaptureNameForId(capture.Index)),
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
		}
	}

	promoteMethods(entries)
	return entries, nil
}

func captureRole(capture string) Role {
	switch capture {
	case "method":
		return RoleMethod
	case "class":
		return RoleClass
	default:
		return RoleFunction
	}
}

// nodeName reads the name field of a definition node.
func nodeName(node *sitter.Node, source []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return nameNode.Content(source)
}

// promoteMethods reclassifies functions nested inside a class span.
func promoteMethods(entries []Entry) {
	for i, e := range entries {
		if e.Role != RoleFunction {
			continue
		}
		for _, c := range entries {
			if c.Role == RoleClass && c.StartLine <= e.StartLine && e.EndLine <= c.EndLine {
				entries[i].Role = RoleMethod
				break
			}
		}
	}
}
