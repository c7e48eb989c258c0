package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input on any CR or LF byte, so both CRLF terminated lines and
// devices that emit bare line feeds are handled. A CRLF pair yields an empty
// token between the two bytes; callers are expected to discard empty lines.
//
// Important: This splitter assumes "No Echo" mode (ATE0). With echo enabled the
// request line comes back as the first token and is indistinguishable from
// payload.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, CRLF); i >= 0 {
		return i + 1, data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the role of a trimmed response line.
func Classify(line string) LineType {
	switch line {
	case OK:
		return TypeOK
	case ERROR:
		return TypeError
	}

	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeError
	default:
		return TypeData
	}
}
