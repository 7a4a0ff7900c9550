package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/poiesic/finwhiz/blob"
	"github.com/poiesic/finwhiz/core"
)

const (
	initialLineBuffer = 64 * 1024
	// DefaultMaxLineSize bounds a single record line.
	DefaultMaxLineSize = 16 * 1024 * 1024
)

type Reader struct {
	store       blob.Store
	maxLineSize int
	logger      *slog.Logger
}

type Option func(*Reader) error

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) error {
		r.logger = logger
		return nil
	}
}

// WithMaxLineSize sets the longest record line the reader accepts.
func WithMaxLineSize(size int) Option {
	return func(r *Reader) error {
		if size < initialLineBuffer {
			return fmt.Errorf("max line size must be at least %d", initialLineBuffer)
		}
		r.maxLineSize = size
		return nil
	}
}

func NewReader(store blob.Store, opts ...Option) (*Reader, error) {
	r := &Reader{
		store:       store,
		maxLineSize: DefaultMaxLineSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "source-reader")
	return r, nil
}

// Objects lists every object under prefix whose name contains filter (an
// empty filter matches everything) and has a recognized format. Objects are
// returned in listing order.
func (r *Reader) Objects(ctx context.Context, prefix, filter string) ([]Object, error) {
	infos, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(infos))
	for _, info := range infos {
		if filter != "" && !strings.Contains(info.Name, filter) {
			continue
		}
		format := DetectFormat(info.Name)
		if format == FormatUnknown {
			r.logger.Debug("skipping object with unrecognized suffix", "name", info.Name)
			continue
		}
		objects = append(objects, Object{Name: info.Name, Size: info.Size, Format: format})
	}
	r.logger.Debug("listed source objects", "prefix", prefix, "filter", filter, "matched", len(objects), "listed", len(infos))
	return objects, nil
}

// Records streams the records of obj. The object is opened when the sequence
// is first pulled and closed when it ends or the consumer stops early. A line
// that is not valid JSON yields an ErrDecode error and ends the sequence.
// Ranging over the sequence again re-reads the object from the start.
func (r *Reader) Records(ctx context.Context, obj Object) iter.Seq2[*core.SourceRecord, error] {
	return func(yield func(*core.SourceRecord, error) bool) {
		if obj.Format == FormatUnknown {
			yield(nil, fmt.Errorf("%w: %s", ErrUnknownFormat, obj.Name))
			return
		}

		rc, err := r.store.Open(ctx, obj.Name)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		var body io.Reader = rc
		if obj.Format == FormatJSONLGzip {
			gz, err := gzip.NewReader(rc)
			if err != nil {
				yield(nil, fmt.Errorf("%w: %s: %w", ErrDecode, obj.Name, err))
				return
			}
			defer gz.Close()
			body = gz
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, initialLineBuffer), r.maxLineSize)

		line := 0
		for scanner.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			raw := bytes.TrimSpace(scanner.Bytes())
			if len(raw) == 0 {
				continue
			}

			var rec core.SourceRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				yield(nil, fmt.Errorf("%w: %s line %d: %w", ErrDecode, obj.Name, line, err))
				return
			}
			if !yield(&rec, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("%w: %s after line %d: %w", ErrDecode, obj.Name, line, err))
		}
	}
}
