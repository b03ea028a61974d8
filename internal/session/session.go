// Package session implements the Session Driver of spec §4.9: it owns the
// arena, scope graph, type registry, evaluator, resolver, intern map, and
// emitter, and runs the fixed 11-phase sequence from source ASTs to an
// assembled byte-code image.
package session

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/ast"
	"github.com/oxhq/basecode/internal/builder"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/emitter"
	"github.com/oxhq/basecode/internal/evaluator"
	"github.com/oxhq/basecode/internal/image"
	"github.com/oxhq/basecode/internal/intern"
	"github.com/oxhq/basecode/internal/resolver"
	"github.com/oxhq/basecode/internal/scope"
	"github.com/oxhq/basecode/internal/types"
	"github.com/oxhq/basecode/internal/varmap"
)

// CompileCallback is invoked at the start, success, and failure of each
// module's evaluation (§6.1 `compile_callback`).
type CompileCallback func(event string, modulePath string)

// Options is the session-options contract of §6.1: everything the CLI
// driver (or a test) can set to shape one run.
type Options struct {
	Verbose         bool
	HeapSize        int
	StackSize       int
	FFIHeapSize     int // default 4096 per §6.1
	OutputASTGraphs bool
	DOMGraphFile    string
	CompilerPath    string
	ModulePaths     []string
	CompileCallback CompileCallback
	Definitions     map[string]string // key -> value constants injected into the root module
}

// DefaultOptions returns the §6.1 defaults (ffi_heap_size=4096, the rest
// zero/empty).
func DefaultOptions() Options {
	return Options{FFIHeapSize: 4096}
}

// Task is one measured step of the phase sequence (§4.9: "the session-task
// tree (name, category, elapsed microseconds)").
type Task struct {
	Name          string
	Category      string
	ElapsedMicros int64
}

// Session orchestrates the fixed phase sequence over one compilation run.
// It is not safe for concurrent use, and every phase, including phase 2's
// module evaluation, runs single-threaded.
type Session struct {
	Options Options

	Arena     *arena.Arena
	Scope     *scope.Graph
	Types     *types.Registry
	Builder   *builder.Builder
	Evaluator *evaluator.Evaluator
	Resolver  *resolver.Resolver
	Interns   *intern.Map
	Diag      *diag.Result
	Emitter   *emitter.Emitter

	Tasks []Task

	// CoreTypes holds phase 1's registered numeric/pointer/singleton types,
	// keyed by name for Definitions injection and diagnostics.
	CoreTypes map[string]arena.ElementID

	moduleIDs     []arena.ElementID // in evaluation order, for phase 9/10 iteration
	moduleVarmaps []*varmap.Map
	image         *image.Image
}

// New creates a Session with a fresh arena and every component wired over
// it, ready to run Compile.
func New(opts Options) *Session {
	a := arena.New()
	s := scope.New(a)
	t := types.NewRegistry(a, s)
	b := builder.New(a)
	ev := evaluator.New(b)
	r := resolver.New(a, s, t)
	interns := intern.New()
	d := &diag.Result{}
	em := emitter.New(a, t, s, r, interns, d)

	return &Session{
		Options:   opts,
		Arena:     a,
		Scope:     s,
		Types:     t,
		Builder:   b,
		Evaluator: ev,
		Resolver:  r,
		Interns:   interns,
		Diag:      d,
		Emitter:   em,
		CoreTypes: make(map[string]arena.ElementID),
	}
}

// measure runs fn and records its wall-clock cost as a Task under category.
func (s *Session) measure(name, category string, fn func()) {
	start := time.Now()
	fn()
	s.Tasks = append(s.Tasks, Task{Name: name, Category: category, ElapsedMicros: time.Since(start).Microseconds()})
}

// Compile runs the full 11-phase sequence over modules (absolute path ->
// parsed AST root), short-circuiting further phases once a phase leaves an
// error-severity diagnostic behind, per §4.9's "any failure shortcircuits
// further phases except that errors already raised continue to be printed."
// It returns the assembled image, or nil if the run failed before phase 10.
func (s *Session) Compile(modules map[string]*ast.Node, mainModule string) *image.Image {
	s.measure("register_core_types", "setup", s.registerCoreTypes)

	s.measure("evaluate_modules", "evaluate", func() { s.evaluateModules(modules) })
	if s.Diag.IsFailed() {
		return nil
	}

	s.measure("resolver_pass_a", "resolve", func() { s.runToFixpoint(s.Resolver.ResolveTypes) })
	s.measure("identifier_resolution", "resolve", func() { s.runToFixpoint(s.Resolver.ResolveIdentifiers) })
	s.measure("resolver_pass_b", "resolve", func() { s.runToFixpoint(s.Resolver.ResolveTypes) })
	s.measure("call_resolution", "resolve", func() { s.runToFixpoint(s.Resolver.ResolveCalls) })
	s.measure("constant_folding", "fold", func() { s.runToFixpoint(func(*diag.Result) bool { return s.Resolver.FoldConstants() }) })
	s.measure("type_check", "check", func() { s.typeCheck() })
	s.measure("resolver_pass_c_final", "resolve", func() { s.finalTypeResolution() })
	if s.Diag.IsFailed() {
		return nil
	}

	s.measure("emit_bytecode", "emit", func() { s.emitBytecode(mainModule) })
	if s.Diag.IsFailed() {
		return nil
	}

	s.measure("assemble_image", "assemble", func() { s.image = s.assemble() })
	s.measure("execute_directives", "directives", func() { s.executeDirectives() })

	return s.image
}

// runToFixpoint reruns pass until it reports no further progress, per
// §4.4's interleaved-until-dry contract.
func (s *Session) runToFixpoint(pass func(*diag.Result) bool) {
	for pass(s.Diag) {
	}
}

// registerCoreTypes implements phase 1: numerics, pointer-to-each-numeric,
// module, namespace, bool, rune, open-generic (§4.9 phase 1).
func (s *Session) registerCoreTypes() {
	numerics := []struct {
		name  string
		size  int
		class arena.NumberClass
	}{
		{"i8", 1, arena.NumberInteger}, {"i16", 2, arena.NumberInteger},
		{"i32", 4, arena.NumberInteger}, {"i64", 8, arena.NumberInteger},
		{"u8", 1, arena.NumberInteger}, {"u16", 2, arena.NumberInteger},
		{"u32", 4, arena.NumberInteger}, {"u64", 8, arena.NumberInteger},
		{"f32", 4, arena.NumberFloating}, {"f64", 8, arena.NumberFloating},
	}
	for _, n := range numerics {
		id := s.Types.RegisterNumeric(n.name, n.size, n.class)
		s.CoreTypes[n.name] = id
		s.CoreTypes["*"+n.name] = s.Types.FindPointerType(id)
	}
	s.CoreTypes["bool"] = s.Types.RegisterBool()
	s.CoreTypes["rune"] = s.Types.RegisterRune()
	s.CoreTypes["module"] = s.Types.RegisterModuleType()
	s.CoreTypes["namespace"] = s.Types.RegisterNamespaceType()
	s.CoreTypes["generic"] = s.Types.RegisterGeneric("T")
}

// evaluateModules implements phase 2: every source file's AST is evaluated
// into the CodeDOM in deterministic (sorted path) order; the evaluator's own
// cache handles recursive imports by absolute path (§4.3, §5 ordering
// guarantee: "imports are considered in the order they were declared" —
// approximated here by sorted path order since no import graph is given).
func (s *Session) evaluateModules(modules map[string]*ast.Node) {
	paths := make([]string, 0, len(modules))
	for p := range modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for i, p := range paths {
		s.callback("start", p)
		id := s.Evaluator.EvaluateModule(p, modules[p], s.Diag)
		if i == 0 {
			s.injectDefinitions(id, p)
		}
		s.moduleIDs = append(s.moduleIDs, id)
		if s.Diag.IsFailed() {
			s.callback("failed", p)
		} else {
			s.callback("success", p)
		}
	}
}

func (s *Session) callback(event, path string) {
	if s.Options.CompileCallback != nil {
		s.Options.CompileCallback(event, path)
	}
}

// injectDefinitions implements the `definitions` option (§6.1): each
// key/value pair is declared as a constant string identifier at the root of
// the module it targets, visible to every later resolver pass exactly like
// a source-declared constant.
func (s *Session) injectDefinitions(moduleID arena.ElementID, modulePath string) {
	if len(s.Options.Definitions) == 0 {
		return
	}
	keys := make([]string, 0, len(s.Options.Definitions))
	for k := range s.Options.Definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.Options.Definitions[k]
		loc := arena.Location{Module: modulePath}
		str := s.Builder.String(v, loc)
		ident := s.Builder.Identifier(k, ":", true, moduleID, loc)
		initElem := &arena.CodeElement{Kind: arena.KindInitializer, Payload: &arena.InitializerPayload{Expr: str}, Location: loc}
		s.Arena.Add(initElem)
		if e := s.Arena.Find(ident); e != nil {
			if ip, ok := e.Payload.(*arena.IdentifierPayload); ok {
				ip.Initializer = initElem.ID
			}
		}
		s.Builder.AppendStatement(moduleID, ident)
	}
}

// PrintDiagnostics writes every raised diagnostic plus the summary line to
// w, in the format described by §7 (added): "component: message (code)".
func (s *Session) PrintDiagnostics(w io.Writer) {
	s.Diag.Print(w)
}

// PrintTasks writes the session-task tree (§4.9) as one line per task.
func (s *Session) PrintTasks(w io.Writer) {
	for _, t := range s.Tasks {
		fmt.Fprintf(w, "%-24s %-10s %6dus\n", t.Name, t.Category, t.ElapsedMicros)
	}
}
