package transcoder

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
)

// EmptyToken encodes a missing value.
const EmptyToken = "0:"

type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Options returns the rules this encoder was built with.
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode converts each value into one wire token. allowIndirection enables
// Indirect arguments and is set only for function and procedure argument lists.
func (e *Encoder) Encode(values []any, allowIndirection bool) ([]string, error) {
	tokens := make([]string, len(values))
	for i, v := range values {
		path := []string{strconv.Itoa(i)}
		tok, err := e.encode(v, allowIndirection, path)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}

// EncodeValue converts one value that is stored as data rather than used as a key.
func (e *Encoder) EncodeValue(v any) (string, error) {
	return e.encode(v, false, []string{"data"})
}

// Number renders a numeric Go value as engine text. ok is false for values that
// are not numbers.
func (e *Encoder) Number(v any) (string, bool, error) {
	text, ok, err := numberText(v)
	if !ok || err != nil {
		return "", ok, err
	}
	if e.opts.Mode == ydbbridge.ModeCanonical {
		text = CanonicalizeNumber(text)
	}
	return text, true, nil
}

func (e *Encoder) encode(v any, allowIndirection bool, path []string) (string, error) {
	// 1. missing
	if v == nil {
		return EmptyToken, nil
	}

	// 2. opaque
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128, reflect.Uintptr:
		return "", errors.Unsupported(errors.PhaseEncode, path, fmt.Sprintf("%T", v))
	}

	// 3. numbers
	text, ok, err := e.Number(v)
	if err != nil {
		return "", errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Value(v).
			Cause(err).
			Build()
	}
	if ok {
		return lengthPrefixed(text, ""), nil
	}

	// 4. structured
	if ind, isIndirect := asIndirect(v); isIndirect {
		if !allowIndirection {
			return "", errors.InvalidStructure(path, "objects are only accepted as function or procedure arguments")
		}
		return e.encodeIndirect(ind, path)
	}
	switch v.(type) {
	case string, []byte, fmt.Stringer:
	default:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array, reflect.Pointer, reflect.Interface:
			return "", errors.InvalidStructure(path, fmt.Sprintf("cannot encode %T", v))
		}
	}

	// 5. strings
	return e.encodeString(stringText(v), path)
}

func (e *Encoder) encodeString(s string, path []string) (string, error) {
	payload, err := ToEngine(s, e.opts.Charset, path)
	if err != nil {
		return "", err
	}
	return quoted(payload), nil
}

func (e *Encoder) encodeIndirect(ind Indirect, path []string) (string, error) {
	switch ind.Type {
	case IndirectValue:
		if _, nested := asIndirect(ind.Value); nested {
			return "", errors.InvalidStructure(path, "value arguments cannot nest objects")
		}
		return e.encode(ind.Value, false, path)
	case IndirectVariable, IndirectReference:
		name, ok := ind.Value.(string)
		if !ok {
			return "", errors.InvalidStructure(path, fmt.Sprintf("%s arguments need a variable name, got %T", ind.Type, ind.Value))
		}
		name, err := ValidateLocal(name, e.opts.reserved(), path...)
		if err != nil {
			return "", err
		}
		if ind.Type == IndirectReference {
			return lengthPrefixed(name, "."), nil
		}
		return lengthPrefixed(name, ""), nil
	}
	return "", errors.New(errors.PhaseEncode, errors.KindInvalidStructure).
		Path(path...).
		Value(ind.Type).
		Detail("unknown argument type %q", ind.Type).
		Build()
}

func asIndirect(v any) (Indirect, bool) {
	switch t := v.(type) {
	case Indirect:
		return t, true
	case *Indirect:
		if t == nil {
			return Indirect{}, false
		}
		return *t, true
	case map[string]any:
		typ, _ := t["type"].(string)
		return Indirect{Type: IndirectType(typ), Value: t["value"]}, true
	}
	return Indirect{}, false
}

func numberText(v any) (string, bool, error) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int8:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int16:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int32:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int64:
		return strconv.FormatInt(n, 10), true, nil
	case uint:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint64:
		return strconv.FormatUint(n, 10), true, nil
	case float32:
		return floatText(float64(n))
	case float64:
		return floatText(n)
	case bool:
		if n {
			return "1", true, nil
		}
		return "0", true, nil
	case json.Number:
		s := string(n)
		if IsCanonicalNumber(s) {
			return s, true, nil
		}
		f, err := n.Float64()
		if err != nil {
			return "", true, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return floatText(f)
	}

	// Named numeric types
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true, nil
	case reflect.Float32, reflect.Float64:
		return floatText(rv.Float())
	}
	return "", false, nil
}

func floatText(f float64) (string, bool, error) {
	s, ok := FormatFloat(f)
	if !ok {
		return "", true, fmt.Errorf("%v has no M representation", f)
	}
	return s, true, nil
}

func stringText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

func lengthPrefixed(payload, marker string) string {
	buf := getBuf()
	defer putBuf(buf)
	*buf = strconv.AppendInt(*buf, int64(len(marker)+len(payload)), 10)
	*buf = append(*buf, ':')
	*buf = append(*buf, marker...)
	*buf = append(*buf, payload...)
	return string(*buf)
}

func quoted(payload string) string {
	buf := getBuf()
	defer putBuf(buf)
	*buf = strconv.AppendInt(*buf, int64(len(payload)+2), 10)
	*buf = append(*buf, ':', '"')
	*buf = append(*buf, payload...)
	*buf = append(*buf, '"')
	return string(*buf)
}

// Join builds the argument string handed to the engine.
func Join(tokens []string) string {
	buf := getBuf()
	defer putBuf(buf)
	for i, t := range tokens {
		if i > 0 {
			*buf = append(*buf, ',')
		}
		*buf = append(*buf, t...)
	}
	return string(*buf)
}
