// Package lockorder implements the static analysis cmd/lockcheck runs:
// a golang.org/x/tools/go/analysis pass that flags source locations
// acquiring a kernel mutex out of the declared global order (spec §4.6:
// "any code taking more than one of these must take them in declared
// order"), the static complement to internal/kmutex's own runtime
// checkOrder diagnostic.
//
// Grounded on spec.md's Testable Property 5 / scenario E3 and on
// biscuit's own reliance on golang.org/x/tools/go/pointer-class alias
// analysis as an auxiliary dev tool over its source tree rather than
// code shipped in the kernel binary. Unlike a whole-program pointer
// analysis, this pass is intraprocedural plus one level of inlining
// through niladic local helper functions (the lockFs()/lockFile()/
// lock() idiom internal/fs and internal/console use to hide the
// kmutex call behind a named wrapper) — it does not trace arbitrary
// call chains, so a violation split across three or more function calls
// is a false negative it accepts in exchange for not requiring a full
// callgraph.
package lockorder

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"exos/internal/kmutex"
)

// kmutexPkgPath is the import path lock/unlock receivers must resolve
// to for an acquisition to be tracked.
const kmutexPkgPath = "exos/internal/kmutex"

// Analyzer reports kernel mutex acquisitions that violate the declared
// global lock order.
var Analyzer = &analysis.Analyzer{
	Name:     "lockorder",
	Doc:      "reports kmutex acquisitions that violate EXOS's declared global lock order",
	URL:      "https://pkg.go.dev/exos/internal/lockorder",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// eventKind distinguishes a lock acquisition from its release.
type eventKind int

const (
	lockEvent eventKind = iota
	unlockEvent
)

// event is one LockMutex/Unlock call site, reduced to the mutex name it
// targets and the position of the call.
type event struct {
	kind eventKind
	name string
	pos  token.Pos
}

// Violation names one out-of-order acquisition: acquired was taken at
// pos while holding was still held, in violation of the declared order.
type Violation struct {
	Pos      token.Pos
	Holding  string
	Acquired string
}

// declaredOrder builds the name->order table from kmutex.Declared, the
// live registry populated by kmutex's own package-level var
// initializers — the single source of truth for the order sequence,
// rather than a second hardcoded copy of it here.
func declaredOrder() map[string]kmutex.Order {
	out := map[string]kmutex.Order{}
	for _, m := range kmutex.Declared() {
		out[m.Name()] = m.Order()
	}
	return out
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	funcDecl := []ast.Node{(*ast.FuncDecl)(nil)}

	// First pass: discover niladic local functions whose body performs
	// exactly one tracked lock/unlock call, e.g.
	//   func lockFs() { kmutex.FileSystem.LockMutex(currentTaskID(), kmutex.Infinite) }
	// so the second pass can treat a call to lockFs() as that event.
	helpers := map[types.Object]event{}
	insp.Preorder(funcDecl, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Body == nil || fn.Type.Params == nil || len(fn.Type.Params.List) != 0 {
			return
		}
		obj := pass.TypesInfo.Defs[fn.Name]
		if obj == nil {
			return
		}
		if ev, ok := soleTrackedCall(pass.TypesInfo, fn.Body); ok {
			helpers[obj] = ev
		}
	})

	insp.Preorder(funcDecl, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Body == nil {
			return
		}
		events := collectEvents(pass.TypesInfo, fn.Body, helpers)
		for _, v := range checkEvents(events) {
			pass.Report(analysis.Diagnostic{
				Pos: v.Pos,
				Message: fmt.Sprintf(
					"lock order violation: %s acquired while %s is held (declared order requires %s before %s)",
					v.Acquired, v.Holding, v.Acquired, v.Holding),
			})
		}
	})

	return nil, nil
}

// resolveMutexName reports the registered name of the package-level
// kmutex variable sel refers to (e.g. the "Process" in
// "kmutex.Process"), and whether sel resolved to a tracked mutex at all.
func resolveMutexName(info *types.Info, sel *ast.SelectorExpr) (string, bool) {
	obj := info.Uses[sel.Sel]
	if obj == nil {
		return "", false
	}
	pkg := obj.Pkg()
	if pkg == nil || pkg.Path() != kmutexPkgPath {
		return "", false
	}
	return obj.Name(), true
}

// trackedCall reports the event call represents at pos, if call is
// either `kmutex.Name.LockMutex(...)`/`kmutex.Name.Unlock(...)`
// directly, or a call to a previously discovered niladic helper
// wrapping one of those.
func trackedCall(info *types.Info, call *ast.CallExpr, helpers map[types.Object]event) (event, bool) {
	pos := call.Pos()
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		recv, ok := fun.X.(*ast.SelectorExpr)
		if !ok {
			return event{}, false
		}
		name, ok := resolveMutexName(info, recv)
		if !ok {
			return event{}, false
		}
		switch fun.Sel.Name {
		case "LockMutex":
			return event{kind: lockEvent, name: name, pos: pos}, true
		case "Unlock":
			return event{kind: unlockEvent, name: name, pos: pos}, true
		}
		return event{}, false
	case *ast.Ident:
		if helpers == nil {
			return event{}, false
		}
		obj := info.Uses[fun]
		if obj == nil {
			return event{}, false
		}
		ev, ok := helpers[obj]
		if !ok {
			return event{}, false
		}
		ev.pos = pos
		return ev, true
	default:
		return event{}, false
	}
}

// soleTrackedCall reports the single tracked lock/unlock call within
// body, if there is exactly one.
func soleTrackedCall(info *types.Info, body *ast.BlockStmt) (event, bool) {
	var found []event
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if ev, ok := trackedCall(info, call, nil); ok {
			found = append(found, ev)
		}
		return true
	})
	if len(found) != 1 {
		return event{}, false
	}
	return found[0], true
}

// collectEvents walks body in source order, returning every tracked
// lock/unlock event.
func collectEvents(info *types.Info, body *ast.BlockStmt, helpers map[types.Object]event) []event {
	var events []event
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if ev, ok := trackedCall(info, call, helpers); ok {
			events = append(events, ev)
		}
		return true
	})
	return events
}

// checkEvents replays events against a held-mutex stack and returns one
// Violation per acquisition that names a mutex whose declared order is
// not strictly greater than every mutex already held — relocking the
// same mutex recursively is never a violation.
func checkEvents(events []event) []Violation {
	order := declaredOrder()
	var stack []event
	var out []Violation
	for _, e := range events {
		switch e.kind {
		case lockEvent:
			ord, ok := order[e.name]
			if !ok {
				continue
			}
			for _, held := range stack {
				if held.name == e.name {
					continue
				}
				if heldOrd, ok := order[held.name]; ok && ord <= heldOrd {
					out = append(out, Violation{Pos: e.pos, Holding: held.name, Acquired: e.name})
				}
			}
			stack = append(stack, e)
		case unlockEvent:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == e.name {
					stack = append(stack[:i], stack[i+1:]...)
					break
				}
			}
		}
	}
	return out
}
