package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUndecodable is returned when no candidate encoding accepts the content.
var ErrUndecodable = errors.New("content does not decode in any supported encoding")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoder converts raw bytes to UTF-8 text, reporting false when the bytes
// are not valid in that encoding.
type decoder struct {
	name   string
	decode func([]byte) (string, bool)
}

// encodings is the order in which ReadText tries encodings. The Korean
// exchanges publish in CP949; some markets ship UTF-8 with or without BOM.
var encodings = []decoder{
	{"cp949", strictDecode(korean.EUCKR, noBOM)},
	{"euc-kr", strictDecode(korean.EUCKR, isWansung)},
	{"utf-8", decodeUTF8},
	{"utf-8-sig", decodeUTF8Sig},
	{"iso-8859-1", strictDecode(charmap.ISO8859_1, nil)},
	{"latin1", strictDecode(charmap.ISO8859_1, nil)},
}

// ReadText reads path and decodes it with the first encoding in encodings that
// accepts the content. It returns the decoded text and the encoding name.
func ReadText(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, enc, err := Decode(raw)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", path, err)
	}
	return text, enc, nil
}

// Decode is ReadText for in-memory content.
func Decode(raw []byte) (string, string, error) {
	for _, d := range encodings {
		if text, ok := d.decode(raw); ok {
			return text, d.name, nil
		}
	}
	return "", "", ErrUndecodable
}

// strictDecode wraps an x/text encoding, whose decoders substitute U+FFFD
// for invalid input instead of failing. A replacement character that was not
// already present in the source marks the decode as failed.
func strictDecode(enc encoding.Encoding, accept func([]byte) bool) func([]byte) (string, bool) {
	return func(raw []byte) (string, bool) {
		if accept != nil && !accept(raw) {
			return "", false
		}
		out, _, err := transform.Bytes(enc.NewDecoder(), raw)
		if err != nil {
			return "", false
		}
		if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(raw, utf8.RuneError) {
			return "", false
		}
		return string(out), true
	}
}

// noBOM rejects UTF-8 BOM-prefixed content, which is never valid CP949 input.
func noBOM(raw []byte) bool {
	return !bytes.HasPrefix(raw, utf8BOM)
}

// isWansung reports whether every double-byte pair stays inside the KS X 1001
// range (lead and trail 0xA1-0xFE). CP949's unified Hangul extension is
// rejected.
func isWansung(raw []byte) bool {
	if !noBOM(raw) {
		return false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < 0x80 {
			continue
		}
		if c < 0xA1 || c == 0xFF || i+1 >= len(raw) {
			return false
		}
		t := raw[i+1]
		if t < 0xA1 || t == 0xFF {
			return false
		}
		i++
	}
	return true
}

// decodeUTF8 accepts BOM-less UTF-8 only; BOM-prefixed content is left to
// the utf-8-sig step so the mark never leaks into the text.
func decodeUTF8(raw []byte) (string, bool) {
	if bytes.HasPrefix(raw, utf8BOM) || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

func decodeUTF8Sig(raw []byte) (string, bool) {
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(out), true
}

// EncodingNames lists the candidate encodings in the order they are tried.
func EncodingNames() []string {
	names := make([]string, len(encodings))
	for i, d := range encodings {
		names[i] = d.name
	}
	return names
}
