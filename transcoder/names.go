package transcoder

import (
	"strings"

	"github.com/wippyai/ydb-bridge/errors"
)

// MaxNameLength is the number of significant characters in an M variable name.
const MaxNameLength = 31

// ValidateGlobal checks a global variable name and returns it with its leading
// caret. The caret is optional on input.
func ValidateGlobal(name string, path ...string) (string, error) {
	bare := strings.TrimPrefix(name, "^")
	if err := checkName(bare, name, path); err != nil {
		return "", err
	}
	return "^" + bare, nil
}

// ValidateLocal checks a local variable name, rejecting names that carry the
// reserved prefix. Surrounding whitespace is stripped.
func ValidateLocal(name, reservedPrefix string, path ...string) (string, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "^") {
		return "", errors.InvalidName(path, name, "a global reference is not a local variable")
	}
	if err := checkName(name, name, path); err != nil {
		return "", err
	}
	if reservedPrefix == "" {
		reservedPrefix = DefaultReservedPrefix
	}
	if strings.HasPrefix(name, reservedPrefix) {
		return "", errors.ReservedName(path, name, reservedPrefix)
	}
	return name, nil
}

// IsReserved reports whether a local name carries the reserved prefix.
func IsReserved(name, reservedPrefix string) bool {
	if reservedPrefix == "" {
		reservedPrefix = DefaultReservedPrefix
	}
	return strings.HasPrefix(name, reservedPrefix)
}

func checkName(bare, original string, path []string) error {
	if bare == "" {
		return errors.InvalidName(path, original, "name must not be empty")
	}
	if strings.ContainsAny(bare, "()") {
		return errors.InvalidName(path, original, "subscripts are not allowed in a variable name")
	}
	if len(bare) > MaxNameLength {
		return errors.InvalidName(path, original, "name is longer than 31 characters")
	}
	for i := 0; i < len(bare); i++ {
		c := bare[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c == '%' && i == 0:
		case c >= '0' && c <= '9' && i > 0:
		default:
			return errors.InvalidName(path, original, "names start with a letter or % and contain only letters and digits")
		}
	}
	return nil
}
