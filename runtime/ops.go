package runtime

import (
	"strconv"
	"strings"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// MaxSubscripts is the deepest node the engine can address.
const MaxSubscripts = 31

// Op selects one operation of the call-in catalog.
type Op int

const (
	OpData Op = iota
	OpGet
	OpSet
	OpKill
	OpOrder
	OpPrevious
	OpNextNode
	OpPreviousNode
	OpIncrement
	OpLock
	OpUnlock
	OpMerge
	OpFunction
	OpProcedure
	OpGlobalDirectory
	OpLocalDirectory
	OpVersion
)

func (o Op) String() string {
	if !o.valid() {
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
	return string(operations[o].routine)
}

func (o Op) valid() bool {
	return o >= 0 && int(o) < len(operations)
}

// ParseOp looks an operation up by its routine name.
func ParseOp(name string) (Op, bool) {
	name = strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	for i, o := range operations {
		if string(o.routine) == name {
			return Op(i), true
		}
	}
	return 0, false
}

// Ref names a node: a global (with or without its caret) or a local, and
// its subscripts.
type Ref struct {
	Global     string `json:"global,omitempty"`
	Local      string `json:"local,omitempty"`
	Subscripts []any  `json:"subscripts,omitempty"`
}

// Options are the named fields of an object-style call. Each operation reads
// the fields it needs and ignores the rest.
type Options struct {
	Ref

	// Data is the value stored by set.
	Data any
	// Increment is the amount added by increment. Nil adds 1.
	Increment any
	// Timeout is the lock wait in seconds. Nil waits until the lock is granted.
	Timeout *float64
	// NodeOnly makes kill remove the node's own value and keep its descendants.
	NodeOnly bool

	From Ref
	To   Ref

	Function   string
	Procedure  string
	Arguments  []any
	AutoRelink *bool

	// Max, Lo and Hi bound directory listings. Zero values are unbounded.
	Max int
	Lo  string
	Hi  string
}

type request struct {
	op         Op
	opts       Options
	byPosition bool
	codec      transcoder.Options
	autoRelink bool

	// name is the validated variable; glvn is what goes on the wire and
	// moves when order skips housekeeping variables.
	name   string
	glvn   string
	global bool
	from   string
	to     string
}

// operation pairs the encode, routine and decode steps of one Op.
type operation struct {
	routine ydbbridge.Routine
	encode  func(enc *transcoder.Encoder, r *request) ([]string, error)
	decode  func(dec *transcoder.Decoder, r *request, status int, raw []byte) (*Envelope, error)
}

var operations = [...]operation{
	OpData:            {ydbbridge.RoutineData, encodeNode, decodeData},
	OpGet:             {ydbbridge.RoutineGet, encodeNode, decodeGet},
	OpSet:             {ydbbridge.RoutineSet, encodeSet, decodeSet},
	OpKill:            {ydbbridge.RoutineKill, encodeKill, decodeKill},
	OpOrder:           {ydbbridge.RoutineOrder, encodeNode, decodeOrder},
	OpPrevious:        {ydbbridge.RoutinePrevious, encodeNode, decodeOrder},
	OpNextNode:        {ydbbridge.RoutineNextNode, encodeNode, decodeQuery},
	OpPreviousNode:    {ydbbridge.RoutinePreviousNode, encodeNode, decodeQuery},
	OpIncrement:       {ydbbridge.RoutineIncrement, encodeIncrement, decodeIncrement},
	OpLock:            {ydbbridge.RoutineLock, encodeLock, decodeLock},
	OpUnlock:          {ydbbridge.RoutineUnlock, encodeUnlock, decodeNone},
	OpMerge:           {ydbbridge.RoutineMerge, encodeMerge, decodeMerge},
	OpFunction:        {ydbbridge.RoutineFunction, encodeFunction, decodeFunction},
	OpProcedure:       {ydbbridge.RoutineProcedure, encodeProcedure, decodeProcedure},
	OpGlobalDirectory: {ydbbridge.RoutineGlobalDirectory, encodeDirectory, decodeDirectory},
	OpLocalDirectory:  {ydbbridge.RoutineLocalDirectory, encodeDirectory, decodeDirectory},
	OpVersion:         {ydbbridge.RoutineVersion, encodeNone, decodeVersion},
}

// resolve validates the node named by ref and returns its engine name.
func resolve(ref Ref, reserved string, path ...string) (string, bool, error) {
	switch {
	case ref.Global != "" && ref.Local != "":
		return "", false, errors.InvalidInput(errors.PhaseValidate, "set either global or local, not both")
	case ref.Global != "":
		name, err := transcoder.ValidateGlobal(ref.Global, append(path, "global")...)
		return name, true, err
	case ref.Local != "":
		name, err := transcoder.ValidateLocal(ref.Local, reserved, append(path, "local")...)
		return name, false, err
	}
	return "", false, errors.InvalidName(path, "", "a global or local name is required")
}

func checkDepth(subs []any, path ...string) error {
	if len(subs) > MaxSubscripts {
		return errors.InvalidData(errors.PhaseValidate, append(path, "subscripts"),
			"more than "+strconv.Itoa(MaxSubscripts)+" subscripts")
	}
	return nil
}

func (r *request) prepare() error {
	switch r.op {
	case OpMerge:
		var err error
		if r.from, _, err = resolve(r.opts.From, r.codec.ReservedPrefix, "from"); err != nil {
			return err
		}
		if r.to, _, err = resolve(r.opts.To, r.codec.ReservedPrefix, "to"); err != nil {
			return err
		}
		if err := checkDepth(r.opts.From.Subscripts, "from"); err != nil {
			return err
		}
		return checkDepth(r.opts.To.Subscripts, "to")
	case OpFunction:
		if strings.TrimSpace(r.opts.Function) == "" {
			return errors.InvalidName([]string{"function"}, "", "an entryref is required")
		}
		return nil
	case OpProcedure:
		if strings.TrimSpace(r.opts.Procedure) == "" {
			return errors.InvalidName([]string{"procedure"}, "", "an entryref is required")
		}
		return nil
	case OpGlobalDirectory, OpLocalDirectory, OpVersion:
		return nil
	case OpKill, OpUnlock:
		// no name: every local (kill) or every lock (unlock)
		if r.opts.Global == "" && r.opts.Local == "" {
			return nil
		}
	}
	var err error
	if r.glvn, r.global, err = resolve(r.opts.Ref, r.codec.ReservedPrefix); err != nil {
		return err
	}
	r.name = r.glvn
	return checkDepth(r.opts.Subscripts)
}

// ref returns the request's node as given by the caller, with the global name
// normalized.
func (r *request) ref() Ref {
	ref := Ref{Subscripts: r.opts.Subscripts}
	if r.global {
		ref.Global = r.name
	} else {
		ref.Local = r.name
	}
	return ref
}

// positional maps (name, args...) onto Options.
func positional(op Op, name string, args []any) (Options, error) {
	var o Options
	switch op {
	case OpFunction:
		o.Function, o.Arguments = name, args
		return o, nil
	case OpProcedure:
		o.Procedure, o.Arguments = name, args
		return o, nil
	case OpGlobalDirectory, OpLocalDirectory, OpVersion:
		return o, nil
	case OpMerge:
		return o, errors.InvalidInput(errors.PhaseValidate, "merge takes options, not positional arguments")
	}
	if strings.HasPrefix(name, "^") {
		o.Global = name
	} else {
		o.Local = name
	}
	if op == OpSet {
		if len(args) == 0 {
			return o, errors.InvalidInput(errors.PhaseValidate, "set needs a value after the subscripts")
		}
		o.Data = args[len(args)-1]
		args = args[:len(args)-1]
	}
	o.Subscripts = args
	return o, nil
}

func subscripts(enc *transcoder.Encoder, subs []any) (string, error) {
	toks, err := enc.Encode(subs, false)
	if err != nil {
		return "", err
	}
	return transcoder.Join(toks), nil
}

func encodeNone(*transcoder.Encoder, *request) ([]string, error) {
	return nil, nil
}

func encodeNode(enc *transcoder.Encoder, r *request) ([]string, error) {
	subs, err := subscripts(enc, r.opts.Subscripts)
	if err != nil {
		return nil, err
	}
	return []string{r.glvn, subs}, nil
}

func encodeSet(enc *transcoder.Encoder, r *request) ([]string, error) {
	args, err := encodeNode(enc, r)
	if err != nil {
		return nil, err
	}
	value, err := enc.EncodeValue(r.opts.Data)
	if err != nil {
		return nil, err
	}
	return append(args, value), nil
}

func encodeKill(enc *transcoder.Encoder, r *request) ([]string, error) {
	if r.glvn == "" {
		return []string{""}, nil
	}
	args, err := encodeNode(enc, r)
	if err != nil {
		return nil, err
	}
	return append(args, flag(r.opts.NodeOnly)), nil
}

func encodeIncrement(enc *transcoder.Encoder, r *request) ([]string, error) {
	args, err := encodeNode(enc, r)
	if err != nil {
		return nil, err
	}
	if r.opts.Increment == nil {
		return append(args, ""), nil
	}
	by, err := enc.EncodeValue(r.opts.Increment)
	if err != nil {
		return nil, err
	}
	return append(args, by), nil
}

func encodeLock(enc *transcoder.Encoder, r *request) ([]string, error) {
	args, err := encodeNode(enc, r)
	if err != nil {
		return nil, err
	}
	timeout := ""
	if r.opts.Timeout != nil && *r.opts.Timeout >= 0 {
		timeout = strconv.FormatFloat(*r.opts.Timeout, 'f', -1, 64)
	}
	return append(args, timeout), nil
}

func encodeUnlock(enc *transcoder.Encoder, r *request) ([]string, error) {
	if r.glvn == "" {
		return []string{""}, nil
	}
	return encodeNode(enc, r)
}

func encodeMerge(enc *transcoder.Encoder, r *request) ([]string, error) {
	from, err := subscripts(enc, r.opts.From.Subscripts)
	if err != nil {
		return nil, err
	}
	to, err := subscripts(enc, r.opts.To.Subscripts)
	if err != nil {
		return nil, err
	}
	return []string{r.from, from, r.to, to}, nil
}

func encodeCall(enc *transcoder.Encoder, r *request, entryref string) ([]string, error) {
	toks, err := enc.Encode(r.opts.Arguments, true)
	if err != nil {
		return nil, err
	}
	return []string{strings.TrimSpace(entryref), transcoder.Join(toks), flag(r.autoRelink)}, nil
}

func encodeFunction(enc *transcoder.Encoder, r *request) ([]string, error) {
	return encodeCall(enc, r, r.opts.Function)
}

func encodeProcedure(enc *transcoder.Encoder, r *request) ([]string, error) {
	return encodeCall(enc, r, r.opts.Procedure)
}

func encodeDirectory(_ *transcoder.Encoder, r *request) ([]string, error) {
	if r.opts.Max < 0 {
		return nil, errors.InvalidData(errors.PhaseValidate, []string{"max"}, "must not be negative")
	}
	limit := ""
	if r.opts.Max > 0 {
		limit = strconv.Itoa(r.opts.Max)
	}
	return []string{limit, r.opts.Lo, r.opts.Hi}, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
