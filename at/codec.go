package at

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Mode selects one of the four AT request shapes.
type Mode int

const (
	// ModeExec renders AT<verb>, or AT<verb>=<args> when arguments are present.
	ModeExec Mode = iota
	// ModeTest renders AT<verb>=? and asks whether a command is supported.
	ModeTest
	// ModeRead renders AT<verb>? and queries the current setting.
	ModeRead
	// ModeSet renders AT<verb>=<args> and modifies a setting.
	ModeSet
)

func (m Mode) String() string {
	switch m {
	case ModeTest:
		return "test"
	case ModeRead:
		return "read"
	case ModeSet:
		return "set"
	default:
		return "exec"
	}
}

// Arg is a single command argument. The set of implementations is closed:
// String, Int and Raw.
type Arg interface {
	render() (string, error)
}

// String is rendered double-quoted.
type String string

// Int is rendered as a decimal number.
type Int int

// Raw is rendered verbatim. It exists for vendor commands whose parameters
// are not quoted, such as the comma separated hex pairs of !NVENCRYPTIMEI.
type Raw string

func (s String) render() (string, error) {
	if strings.ContainsAny(string(s), "\"\r\n") {
		return "", fmt.Errorf("string argument %q contains a quote or line break", string(s))
	}
	return `"` + string(s) + `"`, nil
}

func (i Int) render() (string, error) {
	return strconv.Itoa(int(i)), nil
}

func (r Raw) render() (string, error) {
	if strings.ContainsAny(string(r), CRLF) {
		return "", fmt.Errorf("raw argument %q contains a line break", string(r))
	}
	return string(r), nil
}

// EncodingError reports an argument that cannot be rendered on the wire.
type EncodingError struct {
	Verb  string
	Index int
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode AT%s argument %d: %v", e.Verb, e.Index, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports response bytes that are not valid text.
type DecodingError struct {
	Offset int
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode response: invalid text encoding at byte %d", e.Offset)
}

// Encode builds the request line for verb in the given mode, terminated by a
// single carriage return.
func Encode(verb string, mode Mode, args ...Arg) (string, error) {
	var suffix string
	switch mode {
	case ModeTest, ModeRead:
		if len(args) > 0 {
			return "", &EncodingError{Verb: verb, Index: 0, Err: fmt.Errorf("%s mode takes no arguments", mode)}
		}
		if mode == ModeTest {
			suffix = "=?"
		} else {
			suffix = "?"
		}
	case ModeExec, ModeSet:
		if mode == ModeExec && len(args) == 0 {
			break
		}
		joined, err := joinArgs(verb, args)
		if err != nil {
			return "", err
		}
		suffix = "=" + joined
	default:
		return "", &EncodingError{Verb: verb, Err: fmt.Errorf("unknown mode %d", mode)}
	}
	return Prefix + verb + suffix + CR, nil
}

func joinArgs(verb string, args []Arg) (string, error) {
	parts := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == nil {
			return "", &EncodingError{Verb: verb, Index: i, Err: fmt.Errorf("nil argument")}
		}
		s, err := arg.render()
		if err != nil {
			return "", &EncodingError{Verb: verb, Index: i, Err: err}
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ","), nil
}

// Response is the trimmed, non-empty lines of a single round trip together
// with their classification. Only the last line decides the Status.
type Response struct {
	Lines  []string
	Status Status
}

// Terminal returns the final result line, or "" when the response is Incomplete.
func (r Response) Terminal() string {
	if r.Status == Incomplete || len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[len(r.Lines)-1]
}

// Payload returns the command specific lines preceding the terminal line.
func (r Response) Payload() []string {
	if r.Status == Incomplete || len(r.Lines) == 0 {
		return r.Lines
	}
	return r.Lines[:len(r.Lines)-1]
}

// Decode splits raw modem output into lines and classifies it by its last
// line. It fails only when raw is not valid text.
func Decode(raw []byte) (Response, error) {
	if !utf8.Valid(raw) {
		offset := 0
		for offset < len(raw) {
			r, size := utf8.DecodeRune(raw[offset:])
			if r == utf8.RuneError && size <= 1 {
				break
			}
			offset += size
		}
		return Response{}, &DecodingError{Offset: offset}
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 256), len(raw)+1)
	scanner.Split(Splitter)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	resp := Response{Lines: lines, Status: Incomplete}
	if len(lines) == 0 {
		return resp, nil
	}
	switch Classify(lines[len(lines)-1]) {
	case TypeOK:
		resp.Status = Ok
	case TypeError:
		resp.Status = Err
	}
	return resp, nil
}

// Terminated reports whether the complete lines in raw already end with a
// terminal result line. A trailing line without a line break is not
// considered, since more bytes of it may still arrive.
func Terminated(raw []byte) bool {
	end := bytes.LastIndexAny(raw, CRLF)
	if end < 0 {
		return false
	}
	lines := bytes.FieldsFunc(raw[:end], func(r rune) bool { return r == '\r' || r == '\n' })
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(string(lines[i]))
		if line == "" {
			continue
		}
		return Classify(line) != TypeData
	}
	return false
}

// ParseInfo turns "key: value" payload lines into a map. Lines are split on
// the first colon and both sides trimmed; a leading '+' of extended result
// codes is dropped from the key. Lines without a colon are dropped and a
// repeated key keeps its last value.
func ParseInfo(lines []string) map[string]string {
	info := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		info[strings.TrimPrefix(strings.TrimSpace(key), "+")] = strings.TrimSpace(value)
	}
	return info
}
