package transcoder

import (
	"bytes"
	"encoding/json"
	"strconv"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
)

type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	return &Decoder{opts: opts}
}

// Text transcodes raw engine output into a Go string.
func (d *Decoder) Text(raw []byte) string {
	return FromEngine(raw, d.opts.Charset)
}

// Scalar decodes a single-value response and applies the data mode.
func (d *Decoder) Scalar(raw []byte) any {
	return d.Coerce(d.Text(raw))
}

// Coerce returns s as a float64 when the mode is canonical and s is a canonical
// number, and s unchanged otherwise.
func (d *Decoder) Coerce(s string) any {
	if d.opts.Mode != ydbbridge.ModeCanonical || !IsCanonicalNumber(s) {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}

// JSON decodes a structured response into dst. A parse failure means the two
// sides of the protocol are out of step and is reported as MalformedOutput.
func (d *Decoder) JSON(raw []byte, dst any) error {
	text := d.Text(bytes.TrimSpace(raw))
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return errors.MalformedOutput(err, raw)
	}
	return nil
}

// Subscripts coerces a list of engine subscripts.
func (d *Decoder) Subscripts(subs []string) []any {
	out := make([]any, len(subs))
	for i, s := range subs {
		out[i] = d.Coerce(s)
	}
	return out
}

// Strings coerces every element of a decoded JSON array that is a string.
func (d *Decoder) Strings(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[i] = d.Coerce(s)
		} else {
			out[i] = v
		}
	}
	return out
}
