// Package eventio reads and writes event streams. A stream is a header
// record followed by one record per event, encoded as JSON lines or as
// consecutive MessagePack values. Both encodings use the json struct tags.
package eventio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/jetcalib/internal/jets"
)

// Format is a stream encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts "json", "jsonl" or "msgpack".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "jsonl":
		return FormatJSON, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown event stream format %q", s)
}

// FormatFromPath picks the encoding from a file extension. Anything other
// than .msgpack or .mpk is JSON lines.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	}
	return FormatJSON
}

// Header identifies a stream.
type Header struct {
	RunID     uuid.UUID `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Producer  string    `json:"producer"`
}

// NewHeader returns a header with a fresh run ID.
func NewHeader(producer string) Header {
	return Header{
		RunID:     uuid.New(),
		CreatedAt: time.Now().UTC(),
		Producer:  producer,
	}
}

type headerRecord struct {
	Header *Header `json:"header"`
}

type encoder interface {
	Encode(v interface{}) error
}

type decoder interface {
	Decode(v interface{}) error
}

func newEncoder(w io.Writer, f Format) (encoder, error) {
	switch f {
	case FormatJSON:
		return json.NewEncoder(w), nil
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json") // Use json tags for MessagePack
		return enc, nil
	}
	return nil, fmt.Errorf("unknown event stream format %q", f)
}

func newDecoder(r io.Reader, f Format) (decoder, error) {
	switch f {
	case FormatJSON:
		return json.NewDecoder(r), nil
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		return dec, nil
	}
	return nil, fmt.Errorf("unknown event stream format %q", f)
}

// Writer writes an event stream.
type Writer struct {
	enc    encoder
	header Header
	count  int
}

// NewWriter writes the stream header to w and returns a writer for the
// events that follow it.
func NewWriter(w io.Writer, f Format, h Header) (*Writer, error) {
	enc, err := newEncoder(w, f)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(headerRecord{Header: &h}); err != nil {
		return nil, fmt.Errorf("failed to write stream header: %w", err)
	}
	return &Writer{enc: enc, header: h}, nil
}

// Write appends one event.
func (w *Writer) Write(ev *jets.Event) error {
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to write event %d: %w", ev.Number, err)
	}
	w.count++
	return nil
}

// Count returns the number of events written.
func (w *Writer) Count() int {
	return w.count
}

// Header returns the header written at the start of the stream.
func (w *Writer) Header() Header {
	return w.header
}

// Reader reads an event stream.
type Reader struct {
	dec    decoder
	header Header
	count  int
}

// NewReader reads and checks the stream header.
func NewReader(r io.Reader, f Format) (*Reader, error) {
	dec, err := newDecoder(r, f)
	if err != nil {
		return nil, err
	}
	var rec headerRecord
	if err := dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty event stream")
		}
		return nil, fmt.Errorf("failed to read stream header: %w", err)
	}
	if rec.Header == nil {
		return nil, errors.New("event stream does not start with a header")
	}
	return &Reader{dec: dec, header: *rec.Header}, nil
}

// Header returns the stream header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next event, or io.EOF after the last one.
func (r *Reader) Next() (*jets.Event, error) {
	ev := &jets.Event{}
	if err := r.dec.Decode(ev); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read event %d of the stream: %w", r.count+1, err)
	}
	r.count++
	return ev, nil
}
