// Package transcoder converts between Go values and the engine's wire format.
//
// # Wire Format
//
// Every argument crosses the boundary as a length-prefixed token:
//
//	<byteLength>:<payload>
//
// byteLength is the payload's length in bytes in the active charset. Tokens in
// one argument string are separated by commas; the length prefix makes the
// separator unambiguous even when payloads contain commas.
//
//	Go value                  Token
//	──────────────────────────────────────────
//	nil                       0:
//	42                        2:42
//	0.5 (canonical mode)      2:.5
//	"hello"                   7:"hello"
//	Indirect{variable, "x"}   1:x
//	Indirect{reference, "x"}  2:.x
//
// Indirect arguments are only accepted for function and procedure argument
// lists.
//
// # Decoding
//
// Engine output is either a raw scalar or a JSON document. In canonical mode a
// scalar that is a canonical M number (see IsCanonicalNumber) decodes to a
// float64; everything else stays a string. The 16-character ceiling keeps values
// inside the engine's numeric precision so they round-trip byte for byte.
//
// # Charsets
//
// With CharsetLatin1 strings are transcoded to single-byte form before their
// length is measured, and engine output is transcoded back to UTF-8.
package transcoder
