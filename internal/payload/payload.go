// Package payload turns raw wire bytes into text: decompression followed by
// charset-aware decoding to UTF-8.
package payload

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/PentesterFlow/OpenScribe/internal/errors"
)

// maxDecoded caps decompression output so a hostile upstream cannot exhaust
// memory through a compression bomb.
const maxDecoded = 64 << 20

// Decode decompresses raw according to the Content-Encoding value and
// decodes the result to a UTF-8 string using the charset advertised in
// contentType (defaulting to detection, then UTF-8 passthrough).
func Decode(raw []byte, encoding, contentType string) (string, error) {
	data, err := decompress(raw, encoding)
	if err != nil {
		return "", errors.NewDecodeError(encoding, err)
	}

	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		// Unknown charset: keep the bytes as-is rather than dropping them.
		return string(data), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(data), nil
	}
	return string(decoded), nil
}

func decompress(raw []byte, encoding string) ([]byte, error) {
	switch normalizeEncoding(encoding) {
	case "", "identity":
		return raw, nil
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return io.ReadAll(io.LimitReader(gr, maxDecoded))
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		return io.ReadAll(io.LimitReader(fr, maxDecoded))
	default:
		// br, zstd and friends pass through untouched; the caller falls
		// back to treating the payload as opaque.
		return raw, nil
	}
}

func normalizeEncoding(encoding string) string {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	// Multiple encodings are rare; take the outermost.
	if i := strings.IndexByte(encoding, ','); i >= 0 {
		encoding = strings.TrimSpace(encoding[:i])
	}
	return encoding
}
