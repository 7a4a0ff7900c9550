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

import (
	"fmt"
)

// ValidateSourceRecord checks a record at the ingestion boundary.
// Records without text are valid; they are skipped later and never need an id.
func ValidateSourceRecord(record *SourceRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidSourceRecord)
	}

	if record.Body() != "" && record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSourceRecord, ErrMissingRecordID)
	}

	return nil
}

// ValidateIndexEntry checks an entry before it is written to an index.
func ValidateIndexEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if entry.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyEntryID)
	}

	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEntry, entry.ID, ErrEmptyVector)
	}

	return nil
}
