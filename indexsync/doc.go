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

// Package indexsync keeps a local index directory consistent with a durable
// copy in a blob store.
//
// The remote layout mirrors the local one under a backup prefix:
//
//	<prefix>/index.sqlite3
//	<prefix>/<collection id>/...
//
// EnsureLocal restores the directory when it is missing or empty and leaves
// it untouched otherwise. PersistRemote uploads every local file. Neither
// operation locks: a single writer per index is assumed, and a failed
// transfer leaves whatever was already copied in place.
package indexsync
