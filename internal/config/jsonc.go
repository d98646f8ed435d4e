package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC turns JSONC into plain JSON in one pass. Comments and trailing
// commas are blanked with spaces rather than removed, so decoder offsets still
// point at the same line and column of the original file.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	pendingComma := -1

	for i := 0; i < len(out); i++ {
		switch ch := out[i]; {
		case ch == '"':
			end, err := skipString(out, i)
			if err != nil {
				return "", err
			}
			pendingComma = -1
			i = end
		case ch == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
				i++
			}
		case ch == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(string(out[i+2:]), "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			blank(out[i : i+2+end+2])
			i += 2 + end + 1
		case ch == ',':
			pendingComma = i
		case ch == '}' || ch == ']':
			if pendingComma >= 0 {
				out[pendingComma] = ' '
			}
			pendingComma = -1
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		default:
			pendingComma = -1
		}
	}
	return string(out), nil
}

// skipString returns the index of the quote closing the string opened at start.
func skipString(buf []byte, start int) (int, error) {
	for i := start + 1; i < len(buf); i++ {
		switch buf[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}
	// Leave unterminated strings for the decoder to report with a location.
	return len(buf) - 1, nil
}

// blank overwrites a comment, keeping line breaks so line numbers survive.
func blank(b []byte) {
	for i, ch := range b {
		if ch != '\n' && ch != '\r' {
			b[i] = ' '
		}
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errors.New("multiple JSON values are not allowed")
	default:
		return err
	}
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a decoder offset (bytes consumed) to the 1-based position
// of the last consumed byte.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))
	prefix := content[:limit-1]
	line := 1 + strings.Count(prefix, "\n")
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
