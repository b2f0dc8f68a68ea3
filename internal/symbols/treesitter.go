// Package symbols provides tree-sitter based symbol-span extraction for
// Python sources. Spans are used to map changed line ranges onto the
// functions, classes, and methods they fall inside.
package symbols

import (
	"context"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Span is a symbol with its inclusive line extent.
// Start extends upward over attached decorators; Line is the line the
// def/class keyword appears on. Invariant: Start <= Line <= End.
type Span struct {
	Name  string `json:"name"`
	Kind  string `json:"type"` // "function", "class", "method"
	Line  int    `json:"line"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Extractor extracts top-level symbol spans from Python source.
type Extractor struct {
	parser *sitter.Parser
}

// NewExtractor creates a new span extractor.
func NewExtractor() *Extractor {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Extractor{parser: p}
}

// IsSupported reports whether path participates in span extraction.
func IsSupported(path string) bool {
	return strings.HasSuffix(path, ".py")
}

// ExtractFile extracts symbol spans from a Python file on disk.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]Span, error) {
	if !IsSupported(path) {
		return nil, nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.ExtractSource(ctx, source)
}

// ExtractSource extracts symbol spans from raw Python source bytes.
// Sources that fail to parse yield an empty span list rather than an error;
// tree-sitter produces a best-effort tree for damaged input, and symbols it
// cannot place are simply absent.
func (e *Extractor) ExtractSource(ctx context.Context, source []byte) ([]Span, error) {
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	var spans []Span

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		decoStart, def := unwrapDecorated(node)

		switch def.Type() {
		case "function_definition":
			if sp, ok := functionSpan(def, source, "", decoStart); ok {
				sp.Kind = "function"
				spans = append(spans, sp)
			}
		case "class_definition":
			name := fieldContent(def, "name", source)
			if name == "" {
				continue
			}
			classSpan := Span{
				Name:  name,
				Kind:  "class",
				Line:  int(def.StartPoint().Row) + 1,
				Start: declaredStart(def, decoStart),
				End:   int(def.EndPoint().Row) + 1,
			}
			spans = append(spans, classSpan)
			spans = append(spans, methodSpans(def, source, name)...)
		}
	}

	return spans, nil
}

// methodSpans walks a class body for method definitions, including
// decorated ones, naming them Class.method.
func methodSpans(classDef *sitter.Node, source []byte, className string) []Span {
	body := classDef.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var spans []Span
	for i := 0; i < int(body.NamedChildCount()); i++ {
		node := body.NamedChild(i)
		decoStart, def := unwrapDecorated(node)
		if def.Type() != "function_definition" {
			continue
		}
		if sp, ok := functionSpan(def, source, className+".", decoStart); ok {
			sp.Kind = "method"
			spans = append(spans, sp)
		}
	}
	return spans
}

// unwrapDecorated resolves decorated_definition wrappers, returning the
// first decorator's line (1-based, 0 when undecorated) and the inner
// definition node.
func unwrapDecorated(node *sitter.Node) (int, *sitter.Node) {
	if node.Type() != "decorated_definition" {
		return 0, node
	}
	inner := node.ChildByFieldName("definition")
	if inner == nil {
		return 0, node
	}
	return int(node.StartPoint().Row) + 1, inner
}

func functionSpan(def *sitter.Node, source []byte, namePrefix string, decoStart int) (Span, bool) {
	name := fieldContent(def, "name", source)
	if name == "" {
		return Span{}, false
	}
	return Span{
		Name:  namePrefix + name,
		Line:  int(def.StartPoint().Row) + 1,
		Start: declaredStart(def, decoStart),
		End:   int(def.EndPoint().Row) + 1,
	}, true
}

// declaredStart is the first line attributable to a definition: the earliest
// of its own declaration line and any attached decorator line.
func declaredStart(def *sitter.Node, decoStart int) int {
	line := int(def.StartPoint().Row) + 1
	if decoStart > 0 && decoStart < line {
		return decoStart
	}
	return line
}

func fieldContent(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(source)
}
