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

// Package source enumerates raw document objects in a blob store and streams
// their records.
//
// Two container encodings are recognized by object name suffix:
//
//   - ".ndjson": one JSON record per line
//   - ".jsonl.gz": gzip-compressed, one JSON record per line
//
// The format of an object is decided once, when it is listed, and carried on
// the Object value. Record streams are lazy: a stream opens its object on the
// first pull and reads one line per yielded record, so memory stays
// proportional to a single line regardless of object size.
package source
