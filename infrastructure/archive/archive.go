// Package archive exports journal streams to local or object storage.
//
// An export writes the selected events of one stream as JSON lines into a
// single object, optionally gzip-compressed. Targets are addressed by URL:
//
//	file:///var/lib/toolchanger/archive
//	s3://bucket/prefix?region=eu-west-1&endpoint=http://minio:9000
//	gs://bucket/prefix?credentials=/etc/gcp.json
//	azblob://container/prefix?account=printfarm
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

var (
	// ErrEmptyStream is returned when the selected events are empty.
	ErrEmptyStream = errors.New("archive: no events to export")

	// ErrInvalidTarget is returned for malformed or unsupported target URLs.
	ErrInvalidTarget = errors.New("archive: invalid target")
)

// Metadata describes an archived object.
type Metadata struct {
	ContentType     string            `json:"content_type"`
	ContentEncoding string            `json:"content_encoding,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
}

// Sink stores archive objects.
type Sink interface {
	// Name identifies the sink kind, e.g. "s3".
	Name() string

	// Put writes body under key.
	Put(ctx context.Context, key string, body io.Reader, meta Metadata) error

	// Close releases the sink's client.
	Close() error
}

// Result reports a finished export.
type Result struct {
	Sink     string `json:"sink"`
	Key      string `json:"key"`
	Events   int    `json:"events"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"checksum"`
}

// Exporter copies journal events into a sink.
type Exporter struct {
	source   event.Querier
	sink     Sink
	prefix   string
	compress bool
	now      func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithPrefix places every object below prefix.
func WithPrefix(prefix string) ExporterOption {
	return func(x *Exporter) {
		x.prefix = prefix
	}
}

// WithCompression gzips the exported JSON lines.
func WithCompression(enabled bool) ExporterOption {
	return func(x *Exporter) {
		x.compress = enabled
	}
}

// WithClock overrides the clock used for object keys.
func WithClock(now func() time.Time) ExporterOption {
	return func(x *Exporter) {
		x.now = now
	}
}

// NewExporter creates an exporter reading from source and writing to sink.
func NewExporter(source event.Querier, sink Sink, opts ...ExporterOption) *Exporter {
	x := &Exporter{
		source: source,
		sink:   sink,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Export writes the events of stream matching query as one object.
func (x *Exporter) Export(ctx context.Context, stream string, query event.QueryOptions) (Result, error) {
	events, err := x.source.Query(ctx, stream, query)
	if err != nil {
		return Result{}, fmt.Errorf("archive: query %s: %w", stream, err)
	}
	if len(events) == 0 {
		return Result{}, ErrEmptyStream
	}

	body, err := x.encode(events)
	if err != nil {
		return Result{}, err
	}

	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	meta := Metadata{
		ContentType: "application/x-ndjson",
		Labels: map[string]string{
			"stream":         stream,
			"events":         strconv.Itoa(len(events)),
			"first_sequence": strconv.FormatUint(events[0].Sequence, 10),
			"last_sequence":  strconv.FormatUint(events[len(events)-1].Sequence, 10),
			"sha256":         checksum,
		},
	}
	if x.compress {
		meta.ContentEncoding = "gzip"
	}

	key := x.key(stream)
	if err := x.sink.Put(ctx, key, bytes.NewReader(body), meta); err != nil {
		return Result{}, fmt.Errorf("archive: put %s: %w", key, err)
	}

	logging.Info().
		Add(logging.Component("archive")).
		Add(logging.Str("sink", x.sink.Name())).
		Add(logging.Str("key", key)).
		Add(logging.Int("events", len(events))).
		Msg("journal exported")

	return Result{
		Sink:     x.sink.Name(),
		Key:      key,
		Events:   len(events),
		Bytes:    int64(len(body)),
		Checksum: checksum,
	}, nil
}

func (x *Exporter) key(stream string) string {
	name := stream + "-" + x.now().UTC().Format("20060102T150405Z") + ".jsonl"
	if x.compress {
		name += ".gz"
	}
	return path.Join(x.prefix, stream, name)
}

func (x *Exporter) encode(events []event.Event) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf

	var zw *gzip.Writer
	if x.compress {
		zw = gzip.NewWriter(&buf)
		w = zw
	}

	enc := json.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return nil, fmt.Errorf("archive: encode event %d: %w", events[i].Sequence, err)
		}
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("archive: compress: %w", err)
		}
	}
	return buf.Bytes(), nil
}
