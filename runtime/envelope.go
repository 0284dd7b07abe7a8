package runtime

import (
	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// Envelope is the result of an object-style call. A failed engine call
// returns an Envelope with OK false and the engine's code and message.
type Envelope struct {
	OK           bool   `json:"ok"`
	Global       string `json:"global,omitempty"`
	Local        string `json:"local,omitempty"`
	Subscripts   []any  `json:"subscripts,omitempty"`
	Data         any    `json:"data,omitempty"`
	Defined      any    `json:"defined,omitempty"`
	NodeOnly     bool   `json:"nodeOnly,omitempty"`
	From         *Ref   `json:"from,omitempty"`
	To           *Ref   `json:"to,omitempty"`
	Function     string `json:"function,omitempty"`
	Procedure    string `json:"procedure,omitempty"`
	Arguments    []any  `json:"arguments,omitempty"`
	Result       any    `json:"result,omitempty"`
	ErrorCode    int    `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// failure converts an engine error into its envelope.
func failure(err error) *Envelope {
	e := errors.AsEnvelope(err)
	return &Envelope{ErrorCode: e.ErrorCode, ErrorMessage: e.ErrorMessage}
}

// value is what a positional call returns for op.
func (e *Envelope) value(op Op) any {
	switch op {
	case OpData:
		return e.Defined
	case OpGet, OpIncrement:
		return e.Data
	case OpNextNode, OpPreviousNode:
		return e.Subscripts
	case OpOrder, OpPrevious, OpLock, OpFunction, OpGlobalDirectory, OpLocalDirectory, OpVersion:
		return e.Result
	}
	return nil
}

func (r *request) envelope() *Envelope {
	ref := r.ref()
	return &Envelope{
		OK:         true,
		Global:     ref.Global,
		Local:      ref.Local,
		Subscripts: ref.Subscripts,
	}
}

func decodeNone(_ *transcoder.Decoder, r *request, _ int, _ []byte) (*Envelope, error) {
	return r.envelope(), nil
}

func decodeData(dec *transcoder.Decoder, r *request, _ int, raw []byte) (*Envelope, error) {
	var out struct {
		Defined int `json:"defined"`
	}
	if err := dec.JSON(raw, &out); err != nil {
		return nil, err
	}
	env := r.envelope()
	env.Defined = out.Defined
	return env, nil
}

func decodeGet(dec *transcoder.Decoder, r *request, status int, raw []byte) (*Envelope, error) {
	env := r.envelope()
	if status == ydbbridge.StatusGlobalUndefined || status == ydbbridge.StatusLocalUndefined {
		env.Data = ""
		env.Defined = false
		return env, nil
	}
	env.Data = dec.Scalar(raw)
	env.Defined = true
	return env, nil
}

func decodeSet(_ *transcoder.Decoder, r *request, _ int, _ []byte) (*Envelope, error) {
	env := r.envelope()
	env.Data = r.opts.Data
	return env, nil
}

func decodeKill(_ *transcoder.Decoder, r *request, _ int, _ []byte) (*Envelope, error) {
	env := r.envelope()
	env.NodeOnly = r.opts.NodeOnly
	return env, nil
}

// decodeOrder reports the neighbouring subscript, or variable name when the
// request had no subscripts. The end of the collation sequence is "".
func decodeOrder(dec *transcoder.Decoder, r *request, status int, raw []byte) (*Envelope, error) {
	env := r.envelope()
	if status == ydbbridge.StatusNodeEnd {
		env.Result = ""
		if len(env.Subscripts) > 0 {
			env.Subscripts = replaceLast(env.Subscripts, "")
		}
		return env, nil
	}
	if len(env.Subscripts) == 0 {
		env.Result = dec.Text(raw)
		return env, nil
	}
	next := dec.Scalar(raw)
	env.Subscripts = replaceLast(env.Subscripts, next)
	env.Result = next
	return env, nil
}

func replaceLast(subs []any, v any) []any {
	out := append([]any(nil), subs...)
	out[len(out)-1] = v
	return out
}

func decodeQuery(dec *transcoder.Decoder, r *request, status int, raw []byte) (*Envelope, error) {
	env := r.envelope()
	if status == ydbbridge.StatusNodeEnd {
		env.Subscripts = []any{}
		env.Defined = false
		return env, nil
	}
	var out struct {
		Subscripts []string `json:"subscripts"`
		Data       string   `json:"data"`
	}
	if err := dec.JSON(raw, &out); err != nil {
		return nil, err
	}
	env.Subscripts = dec.Subscripts(out.Subscripts)
	env.Data = dec.Coerce(out.Data)
	env.Defined = true
	return env, nil
}

func decodeIncrement(dec *transcoder.Decoder, r *request, _ int, raw []byte) (*Envelope, error) {
	env := r.envelope()
	env.Data = dec.Scalar(raw)
	return env, nil
}

func decodeLock(_ *transcoder.Decoder, r *request, status int, _ []byte) (*Envelope, error) {
	env := r.envelope()
	env.Result = status == ydbbridge.StatusOK
	return env, nil
}

func decodeMerge(_ *transcoder.Decoder, r *request, _ int, _ []byte) (*Envelope, error) {
	from, to := r.opts.From, r.opts.To
	return &Envelope{OK: true, From: &from, To: &to}, nil
}

func decodeFunction(dec *transcoder.Decoder, r *request, _ int, raw []byte) (*Envelope, error) {
	return &Envelope{
		OK:        true,
		Function:  r.opts.Function,
		Arguments: r.opts.Arguments,
		Result:    dec.Scalar(raw),
	}, nil
}

func decodeProcedure(_ *transcoder.Decoder, r *request, _ int, _ []byte) (*Envelope, error) {
	return &Envelope{OK: true, Procedure: r.opts.Procedure, Arguments: r.opts.Arguments}, nil
}

// decodeDirectory lists variable names without their caret. Local listings
// leave out the engine's housekeeping variables.
func decodeDirectory(dec *transcoder.Decoder, r *request, _ int, raw []byte) (*Envelope, error) {
	var names []string
	if err := dec.JSON(raw, &names); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(names))
	for _, n := range names {
		if r.op == OpLocalDirectory && transcoder.IsReserved(n, r.codec.ReservedPrefix) {
			continue
		}
		out = append(out, n)
	}
	return &Envelope{OK: true, Result: out}, nil
}

func decodeVersion(dec *transcoder.Decoder, _ *request, _ int, raw []byte) (*Envelope, error) {
	return &Envelope{OK: true, Result: dec.Text(raw)}, nil
}
