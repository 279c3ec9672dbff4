package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// AcceptEncoding lists the content codings decodeBody can undo. Because the
// header is set explicitly, net/http does not decompress on our behalf.
const AcceptEncoding = "gzip, deflate, br"

// decodeBody undoes the Content-Encoding of a raw body. An empty body is
// returned as is whatever the header claims.
func decodeBody(encoding string, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	reader, err := decodingReader(encoding, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// decodingReader wraps body according to the encoding header value.
// Closing the returned reader does not close body.
func decodingReader(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		return reader, nil
	case "deflate":
		reader, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid deflate body: %w", err)
		}
		return reader, nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
