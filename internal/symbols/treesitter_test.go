package symbols

import (
	"context"
	"testing"
)

func extract(t *testing.T, source string) []Span {
	t.Helper()
	spans, err := NewExtractor().ExtractSource(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return spans
}

func findSpan(spans []Span, name string) (Span, bool) {
	for _, s := range spans {
		if s.Name == name {
			return s, true
		}
	}
	return Span{}, false
}

func TestExtractTopLevelFunction(t *testing.T) {
	spans := extract(t, "def alpha():\n    first = 1\n    return first\n")

	sp, ok := findSpan(spans, "alpha")
	if !ok {
		t.Fatalf("alpha not found in %v", spans)
	}
	if sp.Kind != "function" {
		t.Errorf("expected function kind, got %s", sp.Kind)
	}
	if sp.Line != 1 || sp.Start != 1 {
		t.Errorf("expected line/start 1, got %d/%d", sp.Line, sp.Start)
	}
	if sp.End != 3 {
		t.Errorf("expected end 3, got %d", sp.End)
	}
}

func TestExtractClassWithMethods(t *testing.T) {
	source := "class Worker:\n" +
		"    def run(self):\n" +
		"        return 1\n" +
		"\n" +
		"    def stop(self):\n" +
		"        return 2\n"
	spans := extract(t, source)

	cls, ok := findSpan(spans, "Worker")
	if !ok {
		t.Fatal("Worker not found")
	}
	if cls.Kind != "class" {
		t.Errorf("expected class kind, got %s", cls.Kind)
	}
	if cls.Start != 1 || cls.End != 6 {
		t.Errorf("class span should cover whole body, got [%d,%d]", cls.Start, cls.End)
	}

	run, ok := findSpan(spans, "Worker.run")
	if !ok {
		t.Fatal("Worker.run not found")
	}
	if run.Kind != "method" {
		t.Errorf("expected method kind, got %s", run.Kind)
	}
	if run.Start != 2 || run.End != 3 {
		t.Errorf("method span [%d,%d], want [2,3]", run.Start, run.End)
	}
	if run.Start < cls.Start || run.End > cls.End {
		t.Error("method span must nest inside class span")
	}

	if _, ok := findSpan(spans, "Worker.stop"); !ok {
		t.Error("Worker.stop not found")
	}
}

func TestDecoratorExtendsStart(t *testing.T) {
	source := "@first\n@second\ndef deco():\n    return 1\n"
	spans := extract(t, source)

	sp, ok := findSpan(spans, "deco")
	if !ok {
		t.Fatal("deco not found")
	}
	if sp.Start != 1 {
		t.Errorf("start must cover first decorator line, got %d", sp.Start)
	}
	if sp.Line != 3 {
		t.Errorf("declaration line should be the def line, got %d", sp.Line)
	}
	if sp.End != 4 {
		t.Errorf("end should be last body line, got %d", sp.End)
	}
}

func TestDecoratedMethod(t *testing.T) {
	source := "class Worker:\n" +
		"    @retry\n" +
		"    def run(self):\n" +
		"        return 1\n"
	spans := extract(t, source)

	sp, ok := findSpan(spans, "Worker.run")
	if !ok {
		t.Fatal("Worker.run not found")
	}
	if sp.Start != 2 {
		t.Errorf("method start must cover decorator, got %d", sp.Start)
	}
	if sp.Line != 3 {
		t.Errorf("method line should be def line, got %d", sp.Line)
	}
}

func TestDecoratedClass(t *testing.T) {
	source := "@register\nclass Plugin:\n    def handle(self):\n        return 1\n"
	spans := extract(t, source)

	cls, ok := findSpan(spans, "Plugin")
	if !ok {
		t.Fatal("Plugin not found")
	}
	if cls.Start != 1 || cls.Line != 2 {
		t.Errorf("decorated class start/line = %d/%d, want 1/2", cls.Start, cls.Line)
	}
	if _, ok := findSpan(spans, "Plugin.handle"); !ok {
		t.Error("method inside decorated class not found")
	}
}

func TestNestedFunctionsNotReported(t *testing.T) {
	source := "def outer():\n    def inner():\n        return 1\n    return inner\n"
	spans := extract(t, source)

	if _, ok := findSpan(spans, "inner"); ok {
		t.Error("nested functions must not be reported as top-level symbols")
	}
	if sp, ok := findSpan(spans, "outer"); !ok || sp.End != 4 {
		t.Errorf("outer should span its whole body, got %+v", sp)
	}
}

func TestAsyncFunction(t *testing.T) {
	spans := extract(t, "async def fetch():\n    return 1\n")
	if _, ok := findSpan(spans, "fetch"); !ok {
		t.Errorf("async def should be extracted, got %v", spans)
	}
}

func TestInvariantStartLineEnd(t *testing.T) {
	source := "@deco\ndef f():\n    pass\n\nclass C:\n    @deco\n    def m(self):\n        pass\n"
	for _, sp := range extract(t, source) {
		if sp.Start > sp.Line || sp.Line > sp.End {
			t.Errorf("span invariant violated for %s: start=%d line=%d end=%d",
				sp.Name, sp.Start, sp.Line, sp.End)
		}
	}
}

func TestNonUTF8SourceDoesNotCrash(t *testing.T) {
	source := []byte("# caf\xe9\n\ndef alpha():\n    return 1\n")
	spans, err := NewExtractor().ExtractSource(context.Background(), source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := findSpan(spans, "alpha"); !ok {
		t.Errorf("expected alpha extracted from non-UTF8 source, got %v", spans)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("pkg/module.py") {
		t.Error(".py should be supported")
	}
	if IsSupported("notes.txt") || IsSupported("main.go") {
		t.Error("non-Python files must not be supported")
	}
}
