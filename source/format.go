package source

import "strings"

// Format is the container encoding of a source object.
type Format int

const (
	FormatUnknown Format = iota
	FormatNDJSON
	FormatJSONLGzip
)

const (
	suffixNDJSON    = ".ndjson"
	suffixJSONLGzip = ".jsonl.gz"
)

// DetectFormat tags an object by its name suffix.
func DetectFormat(name string) Format {
	switch {
	case strings.HasSuffix(name, suffixNDJSON):
		return FormatNDJSON
	case strings.HasSuffix(name, suffixJSONLGzip):
		return FormatJSONLGzip
	default:
		return FormatUnknown
	}
}

func (f Format) String() string {
	switch f {
	case FormatNDJSON:
		return "ndjson"
	case FormatJSONLGzip:
		return "jsonl.gz"
	default:
		return "unknown"
	}
}

// Object is a listed source object with its format already decided.
type Object struct {
	Name   string
	Size   int64
	Format Format
}
