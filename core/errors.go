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

package core

import "errors"

var (
	// ErrInvalidSourceRecord indicates a SourceRecord failed validation.
	ErrInvalidSourceRecord = errors.New("invalid source record")

	// ErrMissingRecordID indicates a record with text has no id to derive chunk ids from.
	ErrMissingRecordID = errors.New("record id cannot be empty")

	// ErrInvalidEntry indicates an IndexEntry failed validation.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrEmptyEntryID indicates the entry ID field is empty.
	ErrEmptyEntryID = errors.New("entry id cannot be empty")

	// ErrEmptyVector indicates the entry has no vector.
	ErrEmptyVector = errors.New("entry vector cannot be empty")
)
