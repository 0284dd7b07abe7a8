package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/wippyai/ydb-bridge/transcoder"
)

// Extrinsic is a Go routine callable through the function and procedure entry
// points. Its return value is the function result; procedures ignore it.
type Extrinsic func(env *Env, args []*Arg) (string, error)

// Arg is one actual parameter of an extrinsic call.
type Arg struct {
	// Name is the local variable the argument came from, if any.
	Name  string
	Value string
	ByRef bool

	changed bool
}

// Set assigns a new value. It is written back to the caller's variable only
// for arguments passed by reference.
func (a *Arg) Set(v string) {
	a.Value = v
	a.changed = true
}

// Env gives an extrinsic access to the engine's variables while it runs. Names
// starting with ^ are globals.
type Env struct {
	ctx context.Context
	l   *Local
}

// Get returns the value of a node and whether it is defined.
func (e *Env) Get(glvn string, subs ...string) (string, bool, error) {
	st, name := e.l.space(glvn)
	v, ok, err := st.get(e.ctx, name, encodeKey(plainSubscripts(subs)))
	return string(v), ok, err
}

// Set stores a value. Globals refuse null subscripts.
func (e *Env) Set(glvn, value string, subs ...string) error {
	st, name := e.l.space(glvn)
	keys := plainSubscripts(subs)
	if st == e.l.globals && hasNull(keys) {
		return fmt.Errorf("%%YDB-E-NULSUBSC, Null subscripts are not allowed for %s", glvn)
	}
	return st.put(e.ctx, name, encodeKey(keys), []byte(value))
}

// Kill removes a node and its descendants.
func (e *Env) Kill(glvn string, subs ...string) error {
	st, name := e.l.space(glvn)
	lo, hi := subtreeBounds(encodeKey(plainSubscripts(subs)))
	return st.deleteRange(e.ctx, name, lo, hi)
}

func plainSubscripts(subs []string) []subscript {
	out := make([]subscript, len(subs))
	for i, s := range subs {
		out[i] = subscript{text: s, numeric: transcoder.IsCanonicalNumber(s)}
	}
	return out
}

// normalizeEntryref makes "label^routine" and "^routine" lookups stable.
func normalizeEntryref(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "$$")
	if i := strings.IndexByte(ref, '('); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
