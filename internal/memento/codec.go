package memento

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Codec turns a memento payload into its URL-safe external form and back.
type Codec interface {
	Name() string
	Encode(payload []byte) (string, error)
	Decode(s string) ([]byte, error)
}

// CodecByName returns the codec configured as "url" or "gzip".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "url":
		return URLCodec{}, nil
	case "gzip":
		return GzipCodec{}, nil
	default:
		return nil, fmt.Errorf("memento: unknown codec %q (valid: url, gzip)", name)
	}
}

// URLCodec is unpadded URL-safe base64.
type URLCodec struct{}

func (URLCodec) Name() string { return "url" }

func (URLCodec) Encode(payload []byte) (string, error) {
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

func (URLCodec) Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// gzipPrefix marks compressed mementos. It is also a base64url character,
// so the configured codec decides the format and nothing sniffs it.
const gzipPrefix = "z"

// maxInflated bounds decompression of untrusted input.
const maxInflated = 1 << 20

// GzipCodec compresses the payload before base64url encoding. Worth it for
// mementos with many or long tokens.
type GzipCodec struct{}

func (GzipCodec) Name() string { return "gzip" }

func (GzipCodec) Encode(payload []byte) (string, error) {
	var buf bytes.Buffer
	// The default header carries no ModTime or Name, so equal payloads
	// encode to equal strings.
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(payload); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return gzipPrefix + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func (GzipCodec) Decode(s string) ([]byte, error) {
	rest, ok := strings.CutPrefix(s, gzipPrefix)
	if !ok {
		return nil, errors.New("missing gzip marker")
	}
	data, err := base64.RawURLEncoding.DecodeString(rest)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflated+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("inflated payload exceeds %d bytes", maxInflated)
	}
	return out, nil
}
