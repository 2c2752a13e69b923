// Package decode turns a raw CSV byte stream into a dataset.Dataset, trying
// encodings and delimiters in a fixed priority order. Decoding is total: it
// returns either a table or a *decode.Error listing every attempt's failure.
package decode

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

// AttemptError records why one parse method failed.
type AttemptError struct {
	Method string
	Err    error
}

func (a AttemptError) String() string { return fmt.Sprintf("method %q failed: %v", a.Method, a.Err) }

// Error is returned when every parse method failed. Attempts holds the
// per-method failures in the order they were tried.
type Error struct {
	Attempts []AttemptError
}

func (e *Error) Error() string {
	if len(e.Attempts) == 0 {
		return "decode: no parse method succeeded"
	}
	lines := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		lines[i] = a.String()
	}
	return "decode: no parse method succeeded:\n" + strings.Join(lines, "\n")
}

type parseMode int

const (
	modeStrict parseMode = iota
	modeSkipBad
	modePermissive
)

type attempt struct {
	method string
	run    func() (*dataset.Dataset, error)
}

// Decode parses raw CSV bytes. The attempt chain mirrors the upload loader's
// historical order; the first attempt yielding a table with at least one
// column wins and the rest are never tried.
func Decode(raw []byte) (*dataset.Dataset, error) {
	if len(raw) == 0 {
		return nil, &Error{Attempts: []AttemptError{{Method: "input check", Err: errors.New("empty input")}}}
	}

	detName, detEnc := detectEncoding(raw)

	attempts := []attempt{
		{fmt.Sprintf("detected encoding (%s)", detName), func() (*dataset.Dataset, error) {
			return parseWith(raw, detEnc, detName, ',', modeStrict)
		}},
		{"utf-8", func() (*dataset.Dataset, error) {
			return parseWith(raw, nil, "utf-8", ',', modeStrict)
		}},
		{"latin1", func() (*dataset.Dataset, error) {
			return parseWith(raw, charmap.ISO8859_1, "latin1", ',', modeStrict)
		}},
		{"cp1252", func() (*dataset.Dataset, error) {
			return parseWith(raw, charmap.Windows1252, "cp1252", ',', modeStrict)
		}},
		{"iso-8859-1", func() (*dataset.Dataset, error) {
			return parseWith(raw, charmap.ISO8859_1, "iso-8859-1", ',', modeStrict)
		}},
		{fmt.Sprintf("semicolon separator, %s", detName), func() (*dataset.Dataset, error) {
			return parseWith(raw, detEnc, detName, ';', modeStrict)
		}},
		{fmt.Sprintf("tab separator, %s", detName), func() (*dataset.Dataset, error) {
			return parseWith(raw, detEnc, detName, '\t', modeStrict)
		}},
		{fmt.Sprintf("skip bad lines, %s", detName), func() (*dataset.Dataset, error) {
			return parseWith(raw, detEnc, detName, ',', modeSkipBad)
		}},
		{fmt.Sprintf("permissive parser, %s", detName), func() (*dataset.Dataset, error) {
			return parseWith(raw, detEnc, detName, ',', modePermissive)
		}},
		{fmt.Sprintf("auto delimiter, %s", detName), func() (*dataset.Dataset, error) {
			return parseWith(raw, detEnc, detName, sniffDelimiter(raw), modeStrict)
		}},
	}

	derr := &Error{}
	for _, a := range attempts {
		ds, err := a.run()
		if err != nil {
			derr.Attempts = append(derr.Attempts, AttemptError{Method: a.method, Err: err})
			continue
		}
		ds.Coerce()
		return ds, nil
	}
	return nil, derr
}

// detectEncoding guesses the byte encoding with a confidence-based detector,
// defaulting to UTF-8 when detection fails or names an unknown charset. The
// returned encoding is nil for UTF-8 (no transformation needed).
func detectEncoding(raw []byte) (string, encoding.Encoding) {
	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || res == nil || res.Charset == "" {
		return "utf-8", nil
	}
	name := strings.ToLower(res.Charset)
	if name == "utf-8" {
		return name, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "utf-8", nil
	}
	return name, enc
}

func decodeText(raw []byte, enc encoding.Encoding, name string) (string, error) {
	if bytes.IndexByte(raw, 0) >= 0 && enc == nil {
		return "", errors.New("binary content: NUL byte in stream")
	}
	if enc == nil {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("invalid %s byte sequence", name)
		}
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	if bytes.IndexByte(out, 0) >= 0 {
		return "", errors.New("binary content: NUL byte after decode")
	}
	return string(out), nil
}

func parseWith(raw []byte, enc encoding.Encoding, name string, comma rune, mode parseMode) (*dataset.Dataset, error) {
	text, err := decodeText(raw, enc, name)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.TrimLeadingSpace = true
	switch mode {
	case modeStrict:
		// FieldsPerRecord 0: infer width from the header, error on ragged rows.
	case modeSkipBad, modePermissive:
		r.FieldsPerRecord = -1
		if mode == modePermissive {
			r.LazyQuotes = true
		}
	}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, errors.New("header has no fields")
	}
	if len(header) == 1 && strings.ContainsAny(header[0], ";\t") {
		return nil, errors.New("single column with embedded delimiter; wrong separator")
	}
	if !plausibleHeader(header) {
		return nil, errors.New("header contains non-text content")
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var perr *csv.ParseError
			if mode == modeSkipBad && errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		if mode == modeSkipBad && len(rec) != len(header) {
			continue
		}
		row := make([]string, len(rec))
		copy(row, rec)
		rows = append(rows, row)
	}
	return dataset.New(header, rows), nil
}

// plausibleHeader rejects headers that are clearly not text, so binary blobs
// fall through the whole chain instead of becoming a one-column table.
func plausibleHeader(header []string) bool {
	for _, h := range header {
		for _, r := range h {
			if r < 0x20 && r != '\t' {
				return false
			}
			if r == utf8.RuneError {
				return false
			}
		}
	}
	return true
}

// sniffDelimiter picks the candidate separator occurring most often in the
// first line, preferring comma on ties.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, c := range []byte{';', '\t', '|'} {
		if n := bytes.Count(line, []byte{c}); n > bestN {
			best, bestN = rune(c), n
		}
	}
	return best
}
