package source

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var errUndecodable = errors.New("no configured encoding could decode the content")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

type namedEncoding struct {
	name string
	enc  encoding.Encoding
}

// Decoder turns raw file bytes into UTF-8 text. A byte-order mark wins;
// otherwise the configured encodings are tried in order.
type Decoder struct {
	encodings []namedEncoding
}

// NewDecoder resolves WHATWG encoding labels such as "utf-8", "windows-1252"
// or "shift_jis". An empty list means UTF-8 only.
func NewDecoder(labels []string) (*Decoder, error) {
	if len(labels) == 0 {
		labels = []string{"utf-8"}
	}
	d := &Decoder{encodings: make([]namedEncoding, 0, len(labels))}
	for _, label := range labels {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
		}
		name, err := htmlindex.Name(enc)
		if err != nil {
			name = label
		}
		d.encodings = append(d.encodings, namedEncoding{name: name, enc: enc})
	}
	return d, nil
}

// Decode returns data as UTF-8 together with the name of the encoding used.
func (d *Decoder) Decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		out := data[len(bomUTF8):]
		if !utf8.Valid(out) {
			return nil, "", fmt.Errorf("invalid utf-8 after byte-order mark: %w", errUndecodable)
		}
		return out, "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("decoding utf-16le: %w", err)
		}
		return out, "utf-16le", nil
	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("decoding utf-16be: %w", err)
		}
		return out, "utf-16be", nil
	}

	for _, ne := range d.encodings {
		if ne.name == "utf-8" {
			if utf8.Valid(data) {
				return data, ne.name, nil
			}
			continue
		}
		out, err := ne.enc.NewDecoder().Bytes(data)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return out, ne.name, nil
	}
	return nil, "", errUndecodable
}
