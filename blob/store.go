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

// Package blob defines the object store abstraction shared by the source
// reader and the index sync manager.
//
// A Store exposes flat object names; "directories" exist only as name
// prefixes. Implementations:
//
//   - blob/gcs: Google Cloud Storage
//   - blob/minio: S3-compatible stores through minio-go
//   - blob/memory: in-process store for tests and local runs
package blob

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name string
	Size int64
}

type Store interface {
	// List returns every object whose name starts with prefix, ordered by
	// name. An empty prefix lists the whole bucket.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Open returns a reader over the object's content. Returns ErrNotFound
	// when the object does not exist. The caller must close the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Put writes size bytes from r under name, replacing any existing object.
	// A negative size means unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Close releases the underlying client.
	Close() error
}
