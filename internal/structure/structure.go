// Package structure extracts file outlines: top-level functions, classes
// with their methods, and imports, across the supported languages.
package structure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported source language.
type Language string

const (
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangUnknown    Language = "unknown"
)

// DetectLanguage maps a file path to its language by extension.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return LangPython
	case ".go":
		return LangGo
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript
	case ".ts":
		return LangTypeScript
	case ".tsx":
		return LangTSX
	default:
		return LangUnknown
	}
}

func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangPython:
		return python.GetLanguage(), nil
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// Function is a top-level function declaration.
type Function struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Method is a function declared inside a class or bound to a receiver.
type Method struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Class is a class, struct, or interface declaration with its methods.
type Class struct {
	Name    string   `json:"name"`
	Line    int      `json:"line"`
	Methods []Method `json:"methods"`
}

// FileSummary is the outline of a single source file.
type FileSummary struct {
	Path      string     `json:"path"`
	Language  Language   `json:"language"`
	Functions []Function `json:"functions"`
	Classes   []Class    `json:"classes"`
	Imports   []string   `json:"imports"`
}

// Declaration is a flat outline entry. Methods are named Class.method
// with kind "method"; classes, structs, and interfaces carry kind "class".
type Declaration struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line int    `json:"line"`
}

// Extractor parses source files and produces outlines.
type Extractor struct {
	parser *sitter.Parser
}

// NewExtractor creates a new outline extractor.
func NewExtractor() *Extractor {
	return &Extractor{parser: sitter.NewParser()}
}

// Summarize extracts the outline of the file at path.
func (e *Extractor) Summarize(ctx context.Context, path string) (*FileSummary, error) {
	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.SummarizeSource(ctx, path, source)
}

// SummarizeSource extracts the outline from raw source bytes. The path is
// used for language detection and recorded in the summary.
func (e *Extractor) SummarizeSource(ctx context.Context, path string, source []byte) (*FileSummary, error) {
	lang := DetectLanguage(path)
	tsLang, err := getLanguage(lang)
	if err != nil {
		return nil, err
	}

	e.parser.SetLanguage(tsLang)
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	summary := &FileSummary{
		Path:      path,
		Language:  lang,
		Functions: []Function{},
		Classes:   []Class{},
		Imports:   []string{},
	}

	root := tree.RootNode()
	switch lang {
	case LangPython:
		walkPython(root, source, summary)
	case LangGo:
		walkGo(root, source, summary)
	case LangJavaScript, LangTypeScript, LangTSX:
		walkScript(root, source, summary)
	}
	return summary, nil
}

// Declarations flattens the outline of path into declaration-line entries.
func (e *Extractor) Declarations(ctx context.Context, path string) ([]Declaration, error) {
	summary, err := e.Summarize(ctx, path)
	if err != nil {
		return nil, err
	}
	return summary.Declarations(), nil
}

// Declarations flattens a summary into one entry per symbol.
func (s *FileSummary) Declarations() []Declaration {
	var out []Declaration
	for _, f := range s.Functions {
		out = append(out, Declaration{Name: f.Name, Kind: "function", Line: f.Line})
	}
	for _, c := range s.Classes {
		out = append(out, Declaration{Name: c.Name, Kind: "class", Line: c.Line})
		for _, m := range c.Methods {
			out = append(out, Declaration{Name: c.Name + "." + m.Name, Kind: "method", Line: m.Line})
		}
	}
	return out
}

func walkPython(root *sitter.Node, source []byte, summary *FileSummary) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := unwrapDecorated(root.NamedChild(i))
		switch node.Type() {
		case "function_definition":
			if name := fieldContent(node, "name", source); name != "" {
				summary.Functions = append(summary.Functions, Function{Name: name, Line: line(node)})
			}
		case "class_definition":
			name := fieldContent(node, "name", source)
			if name == "" {
				continue
			}
			class := Class{Name: name, Line: line(node), Methods: []Method{}}
			if body := node.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					member := unwrapDecorated(body.NamedChild(j))
					if member.Type() != "function_definition" {
						continue
					}
					if mn := fieldContent(member, "name", source); mn != "" {
						class.Methods = append(class.Methods, Method{Name: mn, Line: line(member)})
					}
				}
			}
			summary.Classes = append(summary.Classes, class)
		case "import_statement":
			summary.Imports = append(summary.Imports, pythonImportNames(node, source)...)
		case "import_from_statement":
			if mod := fieldContent(node, "module_name", source); mod != "" {
				summary.Imports = append(summary.Imports, mod)
			}
		}
	}
}

func pythonImportNames(node *sitter.Node, source []byte) []string {
	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			names = append(names, child.Content(source))
		case "aliased_import":
			if name := fieldContent(child, "name", source); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func walkGo(root *sitter.Node, source []byte, summary *FileSummary) {
	// Methods are grouped under the class entry for their receiver type;
	// receivers without a matching type declaration in this file get a
	// synthetic class entry at the method's line.
	classIndex := map[string]int{}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			if name := fieldContent(node, "name", source); name != "" {
				summary.Functions = append(summary.Functions, Function{Name: name, Line: line(node)})
			}
		case "method_declaration":
			name := fieldContent(node, "name", source)
			recv := goReceiverType(node, source)
			if name == "" || recv == "" {
				continue
			}
			idx, ok := classIndex[recv]
			if !ok {
				summary.Classes = append(summary.Classes, Class{Name: recv, Line: line(node), Methods: []Method{}})
				idx = len(summary.Classes) - 1
				classIndex[recv] = idx
			}
			summary.Classes[idx].Methods = append(summary.Classes[idx].Methods, Method{Name: name, Line: line(node)})
		case "type_declaration":
			for j := 0; j < int(node.NamedChildCount()); j++ {
				spec := node.NamedChild(j)
				if spec.Type() != "type_spec" {
					continue
				}
				name := fieldContent(spec, "name", source)
				if name == "" {
					continue
				}
				if idx, ok := classIndex[name]; ok {
					summary.Classes[idx].Line = line(spec)
					continue
				}
				summary.Classes = append(summary.Classes, Class{Name: name, Line: line(spec), Methods: []Method{}})
				classIndex[name] = len(summary.Classes) - 1
			}
		case "import_declaration":
			collectGoImports(node, source, summary)
		}
	}
}

func goReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	decl := recv.NamedChild(0)
	typ := decl.ChildByFieldName("type")
	if typ == nil {
		return ""
	}
	name := typ.Content(source)
	name = strings.TrimPrefix(name, "*")
	// Drop type parameters on generic receivers.
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	return name
}

func collectGoImports(node *sitter.Node, source []byte, summary *FileSummary) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			if path := fieldContent(n, "path", source); path != "" {
				summary.Imports = append(summary.Imports, strings.Trim(path, `"`))
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
}

func walkScript(root *sitter.Node, source []byte, summary *FileSummary) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "export_statement" {
			if decl := node.ChildByFieldName("declaration"); decl != nil {
				node = decl
			}
		}
		switch node.Type() {
		case "function_declaration", "generator_function_declaration":
			if name := fieldContent(node, "name", source); name != "" {
				summary.Functions = append(summary.Functions, Function{Name: name, Line: line(node)})
			}
		case "class_declaration", "abstract_class_declaration":
			name := fieldContent(node, "name", source)
			if name == "" {
				continue
			}
			class := Class{Name: name, Line: line(node), Methods: []Method{}}
			if body := node.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					member := body.NamedChild(j)
					if member.Type() != "method_definition" {
						continue
					}
					if mn := fieldContent(member, "name", source); mn != "" {
						class.Methods = append(class.Methods, Method{Name: mn, Line: line(member)})
					}
				}
			}
			summary.Classes = append(summary.Classes, class)
		case "interface_declaration":
			if name := fieldContent(node, "name", source); name != "" {
				summary.Classes = append(summary.Classes, Class{Name: name, Line: line(node), Methods: []Method{}})
			}
		case "lexical_declaration", "variable_declaration":
			collectScriptFunctionVars(node, source, summary)
		case "import_statement":
			if src := fieldContent(node, "source", source); src != "" {
				summary.Imports = append(summary.Imports, strings.Trim(src, "\"'`"))
			}
		}
	}
}

// collectScriptFunctionVars reports `const f = () => {}` style declarations
// as functions.
func collectScriptFunctionVars(node *sitter.Node, source []byte, summary *FileSummary) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value == nil {
			continue
		}
		switch value.Type() {
		case "arrow_function", "function", "function_expression", "generator_function":
			if name := fieldContent(decl, "name", source); name != "" {
				summary.Functions = append(summary.Functions, Function{Name: name, Line: line(decl)})
			}
		}
	}
}

func unwrapDecorated(node *sitter.Node) *sitter.Node {
	if node.Type() != "decorated_definition" {
		return node
	}
	if inner := node.ChildByFieldName("definition"); inner != nil {
		return inner
	}
	return node
}

func line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

func fieldContent(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(source)
}
