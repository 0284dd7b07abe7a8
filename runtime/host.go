package runtime

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/ydb-bridge/engine"
	"github.com/wippyai/ydb-bridge/errors"
)

// Routines is a struct-based set of Go routines published under one M routine
// name. Every exported method with the engine.Extrinsic signature becomes a
// label: method AddTax of a value whose Routine is "billing" is callable as
// "addTax^billing".
type Routines interface {
	Routine() string
}

// Registrar is an engine that can run Go routines.
type Registrar interface {
	Register(entryref string, fn engine.Extrinsic)
}

// RoutineRegistry collects Go routines until they are bound to an engine.
type RoutineRegistry struct {
	funcs map[string]engine.Extrinsic
	mu    sync.RWMutex
}

func NewRoutineRegistry() *RoutineRegistry {
	return &RoutineRegistry{funcs: make(map[string]engine.Extrinsic)}
}

var extrinsicType = reflect.TypeOf(engine.Extrinsic(nil))

func (r *RoutineRegistry) RegisterRoutines(h Routines) error {
	routine := h.Routine()
	if routine == "" {
		return errors.InvalidInput(errors.PhaseValidate, "routine name cannot be empty")
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Routine" {
			continue
		}
		bound := rv.Method(i)
		if !bound.Type().ConvertibleTo(extrinsicType) {
			continue
		}
		fn := bound.Convert(extrinsicType).Interface().(engine.Extrinsic)
		r.funcs[toLabel(method.Name)+"^"+routine] = fn
	}
	return nil
}

// RegisterFunc registers one routine under entryref ("label^routine").
func (r *RoutineRegistry) RegisterFunc(entryref string, fn any) error {
	if !strings.Contains(entryref, "^") {
		return errors.InvalidInput(errors.PhaseValidate, "entryref must have the form label^routine")
	}

	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || !rv.Type().ConvertibleTo(extrinsicType) {
		return errors.New(errors.PhaseValidate, errors.KindUnsupported).
			GoType(reflect.TypeOf(fn).String()).
			Detail("handler must be func(*engine.Env, []*engine.Arg) (string, error)").
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.TrimPrefix(entryref, "$$")] = rv.Convert(extrinsicType).Interface().(engine.Extrinsic)
	return nil
}

// Entryrefs lists the registered entryrefs in order.
func (r *RoutineRegistry) Entryrefs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for ref := range r.funcs {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Bind hands every registered routine to reg.
func (r *RoutineRegistry) Bind(reg Registrar) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ref, fn := range r.funcs {
		reg.Register(ref, fn)
	}
}

// Len returns the number of registered routines.
func (r *RoutineRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}

// toLabel converts a Go method name to an M label by lowering its leading
// word: AddTax -> addTax, HTTPGet -> httpGet.
func toLabel(s string) string {
	runes := []rune(s)
	end := 0
	for end < len(runes) && unicode.IsUpper(runes[end]) {
		end++
	}
	// last uppercase before lowercase starts the next word
	if end > 1 && end < len(runes) && unicode.IsLower(runes[end]) {
		end--
	}
	for i := 0; i < end; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
