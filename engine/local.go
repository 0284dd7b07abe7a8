package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// Diagnostic codes reported by the local engine. They follow the real engine's
// numbering where an equivalent message exists.
const (
	codeGlobalUndefined = 150372994
	codeLocalUndefined  = 150373850
	codeNodeEnd         = 151027922
	codeResultTooLarge  = 150375522
	codeInvalidArgument = 151027762
	codeNotInitialized  = 151027770
	codeRoutineMissing  = 150373978
	codeMergeOverlap    = 150373770
	codeRoutineFailed   = 150379610
	codeStorage         = 150372226
	codeTPRollback      = 150383210
	codeNullSubscript   = 150372938
)

// LocalConfig configures a Local engine.
type LocalConfig struct {
	// GlobalDirectory is the SQLite file holding globals. Empty keeps globals in
	// memory for the life of the engine.
	GlobalDirectory string
	Logger          *zap.Logger
}

type localState int

const (
	localNew localState = iota
	localRunning
	localDown
)

// Local is an in-process engine implementing the M data model over the call-in
// protocol. Globals live in SQLite; locals live in a private in-memory
// database. It is not safe for concurrent use; the dispatcher serializes calls.
type Local struct {
	cfg   LocalConfig
	owner uuid.UUID
	log   *zap.Logger
	ctx   context.Context

	state   localState
	globals *store
	locals  *store
	tpDepth int

	mu       sync.RWMutex
	routines map[string]Extrinsic
}

func NewLocal(cfg LocalConfig) *Local {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Local{
		cfg:      cfg,
		owner:    uuid.New(),
		log:      log,
		ctx:      context.Background(),
		routines: make(map[string]Extrinsic),
	}
}

// Register makes fn callable as entryref ("label^routine").
func (l *Local) Register(entryref string, fn Extrinsic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routines[normalizeEntryref(entryref)] = fn
}

func (l *Local) Initialize() error {
	switch l.state {
	case localRunning:
		return fmt.Errorf("engine already initialized")
	case localDown:
		return fmt.Errorf("engine cannot be reinitialized after shutdown")
	}
	globals, err := openStore(l.ctx, l.cfg.GlobalDirectory)
	if err != nil {
		return err
	}
	locals, err := openStore(l.ctx, "")
	if err != nil {
		_ = globals.close()
		return err
	}
	l.globals, l.locals = globals, locals
	l.state = localRunning
	l.log.Debug("local engine initialized", zap.String("global_directory", l.cfg.GlobalDirectory))
	return nil
}

func (l *Local) Shutdown() error {
	if l.state != localRunning {
		l.state = localDown
		return nil
	}
	l.state = localDown
	processLocks.releaseAll(l.owner)
	err := l.locals.close()
	if gerr := l.globals.close(); err == nil {
		err = gerr
	}
	l.log.Debug("local engine shut down")
	return err
}

// Invoke runs one routine. Results are written to c.Result, failures to
// c.Diagnostic as "<code>,<message>".
func (l *Local) Invoke(c *ydbbridge.Call) int {
	if l.state != localRunning {
		return fail(c, codeNotInitialized, "%%YDB-E-NOTINIT, database engine is not initialized")
	}
	out, status := l.route(c)
	if status != ydbbridge.StatusOK {
		return status
	}
	if !c.SetResult(out) {
		return fail(c, codeResultTooLarge, "%%YDB-E-INVSTRLEN, Invalid string length %d: max %d", len(out), cap(c.Result))
	}
	return ydbbridge.StatusOK
}

// Transact runs body inside a savepoint on the globals. A body error rolls the
// savepoint back. Locals are not restored.
func (l *Local) Transact(c *ydbbridge.Call, body func() error) int {
	if l.state != localRunning {
		return fail(c, codeNotInitialized, "%%YDB-E-NOTINIT, database engine is not initialized")
	}
	l.tpDepth++
	level := l.tpDepth
	defer func() { l.tpDepth-- }()

	if err := l.globals.savepoint(l.ctx, level); err != nil {
		return storageFail(c, err)
	}

	var bodyErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				_ = l.globals.rollback(l.ctx, level)
				panic(r)
			}
		}()
		bodyErr = body()
	}()

	if bodyErr != nil {
		if err := l.globals.rollback(l.ctx, level); err != nil {
			return storageFail(c, err)
		}
		fail(c, codeTPRollback, "%%YDB-E-TPROLLBACK, transaction rolled back: %v", bodyErr)
		return ydbbridge.StatusTPRollback
	}
	if err := l.globals.release(l.ctx, level); err != nil {
		return storageFail(c, err)
	}
	return ydbbridge.StatusOK
}

func (l *Local) route(c *ydbbridge.Call) ([]byte, int) {
	switch c.Routine {
	case ydbbridge.RoutineData:
		return l.data(c)
	case ydbbridge.RoutineGet:
		return l.get(c)
	case ydbbridge.RoutineSet:
		return l.set(c)
	case ydbbridge.RoutineKill:
		return l.kill(c)
	case ydbbridge.RoutineOrder:
		return l.order(c, false)
	case ydbbridge.RoutinePrevious:
		return l.order(c, true)
	case ydbbridge.RoutineNextNode:
		return l.query(c, false)
	case ydbbridge.RoutinePreviousNode:
		return l.query(c, true)
	case ydbbridge.RoutineIncrement:
		return l.increment(c)
	case ydbbridge.RoutineLock:
		return l.lock(c)
	case ydbbridge.RoutineUnlock:
		return l.unlock(c)
	case ydbbridge.RoutineMerge:
		return l.merge(c)
	case ydbbridge.RoutineFunction:
		return l.extrinsic(c, true)
	case ydbbridge.RoutineProcedure:
		return l.extrinsic(c, false)
	case ydbbridge.RoutineGlobalDirectory:
		return l.directory(c, l.globals)
	case ydbbridge.RoutineLocalDirectory:
		return l.directory(c, l.locals)
	case ydbbridge.RoutineVersion:
		return l.version(c)
	}
	return nil, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, unknown routine %q", c.Routine)
}

// node resolves the variable and subscripts named by the first two arguments.
type node struct {
	glvn   string
	name   string
	global bool
	st     *store
	subs   []subscript
	key    []byte
}

func (n node) String() string {
	if len(n.subs) == 0 {
		return n.glvn
	}
	parts := make([]string, len(n.subs))
	for i, s := range n.subs {
		if s.numeric {
			parts[i] = s.text
		} else {
			parts[i] = strconv.Quote(s.text)
		}
	}
	return n.glvn + "(" + strings.Join(parts, ",") + ")"
}

// hasNull reports whether any subscript is the empty string.
func hasNull(subs []subscript) bool {
	for _, s := range subs {
		if !s.numeric && s.text == "" {
			return true
		}
	}
	return false
}

// writable refuses to store a global node with a null subscript. Locals allow
// them.
func writable(c *ydbbridge.Call, n node, subs []subscript) int {
	if n.global && hasNull(subs) {
		return fail(c, codeNullSubscript, "%%YDB-E-NULSUBSC, Null subscripts are not allowed for %s", n.glvn)
	}
	return ydbbridge.StatusOK
}

func (l *Local) space(glvn string) (*store, string) {
	if strings.HasPrefix(glvn, "^") {
		return l.globals, glvn[1:]
	}
	return l.locals, glvn
}

func (l *Local) resolve(c *ydbbridge.Call, nameArg, subsArg int) (node, int) {
	glvn := arg(c, nameArg)
	if strings.TrimPrefix(glvn, "^") == "" {
		return node{}, fail(c, codeInvalidArgument, "%%YDB-E-INVVARNAME, Invalid local or global variable name supplied")
	}
	subs, err := parseSubscripts(arg(c, subsArg))
	if err != nil {
		return node{}, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, invalid subscripts for %s: %v", glvn, err)
	}
	st, name := l.space(glvn)
	return node{
		glvn:   glvn,
		name:   name,
		global: st == l.globals,
		st:     st,
		subs:   subs,
		key:    encodeKey(subs),
	}, ydbbridge.StatusOK
}

func (l *Local) data(c *ydbbridge.Call) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	_, hasValue, err := n.st.get(l.ctx, n.name, n.key)
	if err != nil {
		return nil, storageFail(c, err)
	}
	lo, hi := childBounds(n.key)
	hasChildren, err := n.st.exists(l.ctx, n.name, lo, hi)
	if err != nil {
		return nil, storageFail(c, err)
	}
	defined := 0
	if hasValue {
		defined++
	}
	if hasChildren {
		defined += 10
	}
	return definedJSON(defined), ydbbridge.StatusOK
}

func (l *Local) get(c *ydbbridge.Call) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	v, ok, err := n.st.get(l.ctx, n.name, n.key)
	if err != nil {
		return nil, storageFail(c, err)
	}
	if !ok {
		return nil, undefined(c, n)
	}
	return v, ydbbridge.StatusOK
}

func (l *Local) set(c *ydbbridge.Call) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	if status := writable(c, n, n.subs); status != ydbbridge.StatusOK {
		return nil, status
	}
	value, ok := scalarArg(arg(c, 2))
	if !ok {
		return nil, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, invalid data for %s", n)
	}
	if err := n.st.put(l.ctx, n.name, n.key, []byte(value)); err != nil {
		return nil, storageFail(c, err)
	}
	return nil, ydbbridge.StatusOK
}

func (l *Local) kill(c *ydbbridge.Call) ([]byte, int) {
	if arg(c, 0) == "" {
		if err := l.locals.deleteAll(l.ctx); err != nil {
			return nil, storageFail(c, err)
		}
		return nil, ydbbridge.StatusOK
	}
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	var err error
	switch {
	case arg(c, 2) == "1":
		err = n.st.delete(l.ctx, n.name, n.key)
	case len(n.subs) == 0:
		err = n.st.deleteName(l.ctx, n.name)
	default:
		lo, hi := subtreeBounds(n.key)
		err = n.st.deleteRange(l.ctx, n.name, lo, hi)
	}
	if err != nil {
		return nil, storageFail(c, err)
	}
	return nil, ydbbridge.StatusOK
}

// order finds the next (or previous) sibling of the last subscript. Without
// subscripts it walks variable names instead.
func (l *Local) order(c *ydbbridge.Call, reverse bool) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	if len(n.subs) == 0 {
		next, ok, err := n.st.nextName(l.ctx, n.name, reverse)
		if err != nil {
			return nil, storageFail(c, err)
		}
		if !ok {
			return nil, nodeEnd(c)
		}
		if n.global {
			next = "^" + next
		}
		return []byte(next), ydbbridge.StatusOK
	}

	parent := encodeKey(n.subs[:len(n.subs)-1])
	last := n.subs[len(n.subs)-1]
	childLo, childHi := childBounds(parent)
	lo, hi := childLo, childHi
	self := appendElement(append([]byte(nil), parent...), last)
	switch {
	case !last.numeric && last.text == "":
		// "" starts the walk at either end; the null subscript itself is
		// never returned, since it would read as the end of the walk.
		lo = append(self, tagLimit)
	case reverse:
		hi = self
	default:
		lo = append(self, tagLimit)
	}
	r, ok, err := n.st.first(l.ctx, n.name, lo, hi, reverse)
	if err != nil {
		return nil, storageFail(c, err)
	}
	if !ok {
		return nil, nodeEnd(c)
	}
	s, _, err := decodeElement(r.key[len(parent):])
	if err != nil {
		return nil, storageFail(c, err)
	}
	return []byte(s.text), ydbbridge.StatusOK
}

// query walks nodes holding data in depth-first order.
func (l *Local) query(c *ydbbridge.Call, reverse bool) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	var (
		r   row
		ok  bool
		err error
	)
	if reverse {
		r, ok, err = n.st.before(l.ctx, n.name, n.key)
	} else {
		r, ok, err = n.st.after(l.ctx, n.name, n.key)
	}
	if err != nil {
		return nil, storageFail(c, err)
	}
	if !ok {
		return nil, nodeEnd(c)
	}
	subs, err := decodeKey(r.key)
	if err != nil {
		return nil, storageFail(c, err)
	}
	return nodeJSON(subs, r.value), ydbbridge.StatusOK
}

func (l *Local) increment(c *ydbbridge.Call) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	if status := writable(c, n, n.subs); status != ydbbridge.StatusOK {
		return nil, status
	}
	by := 1.0
	if raw := arg(c, 2); raw != "" {
		text, ok := scalarArg(raw)
		if !ok {
			return nil, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, invalid increment for %s", n)
		}
		by = numericValue(text)
	}
	cur, _, err := n.st.get(l.ctx, n.name, n.key)
	if err != nil {
		return nil, storageFail(c, err)
	}
	next := formatNumber(numericValue(string(cur)) + by)
	if err := n.st.put(l.ctx, n.name, n.key, []byte(next)); err != nil {
		return nil, storageFail(c, err)
	}
	return []byte(next), ydbbridge.StatusOK
}

func (l *Local) lockKey(n node) lockKey {
	name := n.name
	if n.global {
		name = "^" + name
	}
	return lockKey{name: name, key: string(n.key)}
}

func (l *Local) lock(c *ydbbridge.Call) ([]byte, int) {
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	timeout := time.Duration(-1)
	if raw := arg(c, 2); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, invalid lock timeout %q", raw)
		}
		if secs >= 0 {
			timeout = time.Duration(secs * float64(time.Second))
		}
	}
	if !processLocks.acquire(l.owner, l.lockKey(n), timeout) {
		return []byte("0"), ydbbridge.StatusLockTimeout
	}
	return []byte("1"), ydbbridge.StatusOK
}

func (l *Local) unlock(c *ydbbridge.Call) ([]byte, int) {
	if arg(c, 0) == "" {
		processLocks.releaseAll(l.owner)
		return nil, ydbbridge.StatusOK
	}
	n, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	processLocks.release(l.owner, l.lockKey(n))
	return nil, ydbbridge.StatusOK
}

func (l *Local) merge(c *ydbbridge.Call) ([]byte, int) {
	from, status := l.resolve(c, 0, 1)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	to, status := l.resolve(c, 2, 3)
	if status != ydbbridge.StatusOK {
		return nil, status
	}
	if from.st == to.st && from.name == to.name {
		if string(from.key) == string(to.key) {
			return nil, ydbbridge.StatusOK
		}
		if strings.HasPrefix(string(from.key), string(to.key)) || strings.HasPrefix(string(to.key), string(from.key)) {
			return nil, fail(c, codeMergeOverlap, "%%YDB-E-MERGEDESC, Merge operation not possible. %s is descendent of %s.", to, from)
		}
	}
	if status := writable(c, to, to.subs); status != ydbbridge.StatusOK {
		return nil, status
	}
	lo, hi := subtreeBounds(from.key)
	rows, err := from.st.rows(l.ctx, from.name, lo, hi)
	if err != nil {
		return nil, storageFail(c, err)
	}
	if to.global && !from.global {
		for _, r := range rows {
			subs, err := decodeKey(r.key)
			if err != nil {
				return nil, storageFail(c, err)
			}
			if status := writable(c, to, subs[len(from.subs):]); status != ydbbridge.StatusOK {
				return nil, status
			}
		}
	}
	for _, r := range rows {
		key := append(append([]byte(nil), to.key...), r.key[len(from.key):]...)
		if err := to.st.put(l.ctx, to.name, key, r.value); err != nil {
			return nil, storageFail(c, err)
		}
	}
	return nil, ydbbridge.StatusOK
}

func (l *Local) extrinsic(c *ydbbridge.Call, function bool) ([]byte, int) {
	ref := normalizeEntryref(arg(c, 0))
	l.mu.RLock()
	fn := l.routines[ref]
	l.mu.RUnlock()
	if fn == nil {
		return nil, fail(c, codeRoutineMissing, "%%YDB-E-ZLINKFILE, Error while zlinking %q", ref)
	}

	toks, err := transcoder.DecodeTokens(arg(c, 1))
	if err != nil {
		return nil, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, invalid arguments for %s: %v", ref, err)
	}
	args := make([]*Arg, len(toks))
	for i, tok := range toks {
		a := &Arg{Value: tok.Text}
		switch tok.Kind {
		case transcoder.TokenVariable, transcoder.TokenReference:
			a.Name = tok.Text
			a.ByRef = tok.Kind == transcoder.TokenReference
			v, ok, err := l.locals.get(l.ctx, tok.Text, rootKey)
			if err != nil {
				return nil, storageFail(c, err)
			}
			if !ok && !a.ByRef {
				return nil, fail(c, codeLocalUndefined, "%%YDB-E-LVUNDEF, Undefined local variable: %s", tok.Text)
			}
			a.Value = string(v)
		}
		args[i] = a
	}

	result, err := fn(&Env{ctx: l.ctx, l: l}, args)
	if err != nil {
		return nil, fail(c, codeRoutineFailed, "%%YDB-E-ROUTINEFAILED, %s: %v", ref, err)
	}
	for _, a := range args {
		if a.ByRef && a.changed {
			if err := l.locals.put(l.ctx, a.Name, rootKey, []byte(a.Value)); err != nil {
				return nil, storageFail(c, err)
			}
		}
	}
	if !function {
		return nil, ydbbridge.StatusOK
	}
	return []byte(result), ydbbridge.StatusOK
}

func (l *Local) directory(c *ydbbridge.Call, st *store) ([]byte, int) {
	limit := 0
	if raw := arg(c, 0); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fail(c, codeInvalidArgument, "%%YDB-E-INVARG, invalid max %q", raw)
		}
		limit = n
	}
	lo := strings.TrimPrefix(arg(c, 1), "^")
	hi := strings.TrimPrefix(arg(c, 2), "^")
	names, err := st.names(l.ctx, lo, hi, limit)
	if err != nil {
		return nil, storageFail(c, err)
	}
	return appendJSONStrings(nil, names), ydbbridge.StatusOK
}

func (l *Local) version(c *ydbbridge.Call) ([]byte, int) {
	v, err := l.globals.version(l.ctx)
	if err != nil {
		return nil, storageFail(c, err)
	}
	return []byte("ydb-bridge local engine, SQLite " + v), ydbbridge.StatusOK
}

func arg(c *ydbbridge.Call, i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// scalarArg decodes a single value token.
func scalarArg(wire string) (string, bool) {
	toks, err := transcoder.DecodeTokens(wire)
	if err != nil || len(toks) > 1 {
		return "", false
	}
	if len(toks) == 0 {
		return "", true
	}
	switch toks[0].Kind {
	case transcoder.TokenEmpty, transcoder.TokenNumber, transcoder.TokenString:
		return toks[0].Text, true
	}
	return "", false
}

func fail(c *ydbbridge.Call, code int, format string, args ...any) int {
	c.SetDiagnostic(code, format, args...)
	return -code
}

func storageFail(c *ydbbridge.Call, err error) int {
	Logger().Error("storage failure", zap.Error(err))
	return fail(c, codeStorage, "%%YDB-E-DBFILERR, Error with database file: %v", err)
}

func undefined(c *ydbbridge.Call, n node) int {
	if n.global {
		return fail(c, codeGlobalUndefined, "%%YDB-E-GVUNDEF, Global variable undefined: %s", n)
	}
	return fail(c, codeLocalUndefined, "%%YDB-E-LVUNDEF, Undefined local variable: %s", n)
}

func nodeEnd(c *ydbbridge.Call) int {
	return fail(c, codeNodeEnd, "%%YDB-E-NODEEND, End of list of nodes/subscripts")
}
