package transcoder

import (
	"strconv"

	"github.com/wippyai/ydb-bridge/errors"
)

// DecodeTokens parses a comma-separated wire string back into tokens. Engine
// implementations use it to recover subscripts and arguments.
func DecodeTokens(wire string) ([]Token, error) {
	if wire == "" {
		return nil, nil
	}
	var tokens []Token
	pos := 0
	for pos < len(wire) {
		colon := pos
		for colon < len(wire) && wire[colon] >= '0' && wire[colon] <= '9' {
			colon++
		}
		if colon == pos || colon >= len(wire) || wire[colon] != ':' {
			return nil, tokenError(pos, "expected <length>:")
		}
		n, err := strconv.Atoi(wire[pos:colon])
		if err != nil {
			return nil, tokenError(pos, "invalid length")
		}
		start := colon + 1
		end := start + n
		if end > len(wire) {
			return nil, tokenError(pos, "length exceeds input")
		}
		tok, err := classify(wire[start:end])
		if err != nil {
			return nil, tokenError(pos, err.Error())
		}
		tokens = append(tokens, tok)
		pos = end
		if pos < len(wire) {
			if wire[pos] != ',' {
				return nil, tokenError(pos, "expected ','")
			}
			pos++
			if pos == len(wire) {
				return nil, tokenError(pos, "trailing ','")
			}
		}
	}
	return tokens, nil
}

func classify(payload string) (Token, error) {
	if payload == "" {
		return Token{Kind: TokenEmpty}, nil
	}
	c := payload[0]
	switch {
	case c == '"':
		if len(payload) < 2 || payload[len(payload)-1] != '"' {
			return Token{}, errors.InvalidInput(errors.PhaseDecode, "unterminated string")
		}
		return Token{Kind: TokenString, Text: payload[1 : len(payload)-1]}, nil
	case c == '.' && len(payload) > 1 && isNameStart(payload[1]):
		return Token{Kind: TokenReference, Text: payload[1:]}, nil
	case isNameStart(c):
		return Token{Kind: TokenVariable, Text: payload}, nil
	}
	if _, err := strconv.ParseFloat(payload, 64); err != nil {
		return Token{}, errors.InvalidInput(errors.PhaseDecode, "invalid number "+strconv.Quote(payload))
	}
	return Token{Kind: TokenNumber, Text: payload}, nil
}

func isNameStart(c byte) bool {
	return c == '%' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func tokenError(pos int, detail string) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path("offset", strconv.Itoa(pos)).
		Detail("%s", detail).
		Build()
}
