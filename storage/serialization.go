// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/finwhiz/core"
)

var (
	// EntryMUS is the value encoding of an index entry.
	EntryMUS mus.Serializer[core.IndexEntry] = entryMUS{}

	// MetadataMUS encodes the five normalized metadata fields in order.
	MetadataMUS mus.Serializer[core.Metadata] = metadataMUS{}

	// VectorMUS encodes a length-prefixed float32 slice.
	VectorMUS mus.Serializer[[]float32] = vectorMUS{}
)

// MarshalEntry serializes an IndexEntry to bytes.
func MarshalEntry(entry *core.IndexEntry) []byte {
	buf := make([]byte, EntryMUS.Size(*entry))
	EntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalEntry deserializes an IndexEntry from bytes.
func UnmarshalEntry(data []byte) (*core.IndexEntry, error) {
	entry, n, err := EntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &entry, nil
}

// MarshalDimension serializes the index dimension to bytes.
func MarshalDimension(dim int) []byte {
	buf := make([]byte, varint.Int.Size(dim))
	varint.Int.Marshal(dim, buf)
	return buf
}

// UnmarshalDimension deserializes the index dimension from bytes.
func UnmarshalDimension(data []byte) (int, error) {
	dim, _, err := varint.Int.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	if dim < 0 {
		return 0, fmt.Errorf("%w: negative dimension %d", ErrSerializationFailed, dim)
	}
	return dim, nil
}

type entryMUS struct{}

func (entryMUS) Marshal(v core.IndexEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += VectorMUS.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.Document, bs[n:])
	n += MetadataMUS.Marshal(v.Metadata, bs[n:])
	return
}

func (entryMUS) Unmarshal(bs []byte) (v core.IndexEntry, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Vector, n1, err = VectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Document, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metadata, n1, err = MetadataMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (entryMUS) Size(v core.IndexEntry) (size int) {
	size = ord.String.Size(v.ID)
	size += VectorMUS.Size(v.Vector)
	size += ord.String.Size(v.Document)
	return size + MetadataMUS.Size(v.Metadata)
}

func (entryMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = VectorMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = MetadataMUS.Skip(bs[n:])
	n += n1
	return
}

type metadataMUS struct{}

func (metadataMUS) Marshal(v core.Metadata, bs []byte) (n int) {
	n = ord.String.Marshal(v.Title, bs)
	n += ord.String.Marshal(v.SourceURL, bs[n:])
	n += ord.String.Marshal(v.DocType, bs[n:])
	n += ord.String.Marshal(v.Authority, bs[n:])
	n += varint.Int.Marshal(v.Year, bs[n:])
	return
}

func (metadataMUS) Unmarshal(bs []byte) (v core.Metadata, n int, err error) {
	var n1 int
	for _, field := range []*string{&v.Title, &v.SourceURL, &v.DocType, &v.Authority} {
		*field, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.Year, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (metadataMUS) Size(v core.Metadata) (size int) {
	for _, field := range []string{v.Title, v.SourceURL, v.DocType, v.Authority} {
		size += ord.String.Size(field)
	}
	return size + varint.Int.Size(v.Year)
}

func (metadataMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	for range 4 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	return
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := vectorLength(bs)
	if err != nil {
		return
	}
	v = make([]float32, length)
	var n1 int
	for i := range v {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

func (vectorMUS) Skip(bs []byte) (n int, err error) {
	length, n, err := vectorLength(bs)
	if err != nil {
		return
	}
	var n1 int
	for range length {
		n1, err = raw.Float32.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// vectorLength reads a vector's element count, rejecting counts the
// remaining bytes cannot hold.
func vectorLength(bs []byte) (length, n int, err error) {
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/4 {
		err = fmt.Errorf("%w: vector length %d", ErrTruncatedData, length)
	}
	return
}
