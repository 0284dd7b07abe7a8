package transcoder

import ydbbridge "github.com/wippyai/ydb-bridge"

// DefaultReservedPrefix is the local-variable prefix the engine-side routines use
// for their own housekeeping variables.
const DefaultReservedPrefix = "v4w"

// Options selects the encoding and decoding rules of one session.
type Options struct {
	Mode           ydbbridge.Mode
	Charset        ydbbridge.Charset
	ReservedPrefix string
}

func (o Options) reserved() string {
	if o.ReservedPrefix == "" {
		return DefaultReservedPrefix
	}
	return o.ReservedPrefix
}

// IndirectType discriminates function and procedure arguments.
type IndirectType string

const (
	// IndirectValue passes Value as an inline literal.
	IndirectValue IndirectType = "value"
	// IndirectVariable passes the current value of the local variable named by Value.
	IndirectVariable IndirectType = "variable"
	// IndirectReference passes the local variable named by Value by reference.
	IndirectReference IndirectType = "reference"
)

// Indirect is a structured function/procedure argument. A map[string]any with
// "type" and "value" keys is accepted in its place.
type Indirect struct {
	Type  IndirectType
	Value any
}

// TokenKind classifies a decoded wire token.
type TokenKind uint8

const (
	TokenEmpty TokenKind = iota
	TokenNumber
	TokenString
	TokenVariable
	TokenReference
)

func (k TokenKind) String() string {
	switch k {
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenVariable:
		return "variable"
	case TokenReference:
		return "reference"
	}
	return "empty"
}

// Token is one parsed wire token. Text holds the payload without quotes or the
// reference marker.
type Token struct {
	Text string
	Kind TokenKind
}
