package core

const (
	// MissingText replaces absent or empty string metadata.
	MissingText = "N/A"

	// MissingYear replaces an absent or null year.
	MissingYear = -1
)

// Normalize resolves every optional metadata field of a record.
//
// String fields fall back to MissingText when nil or empty. Year falls back
// to MissingYear only when nil, so an explicit 0 survives.
func Normalize(record *SourceRecord) Metadata {
	if record == nil {
		return Metadata{
			Title:     MissingText,
			SourceURL: MissingText,
			DocType:   MissingText,
			Authority: MissingText,
			Year:      MissingYear,
		}
	}

	year := MissingYear
	if record.Year != nil {
		year = *record.Year
	}

	return Metadata{
		Title:     orMissing(record.Title),
		SourceURL: orMissing(record.SourceURL),
		DocType:   orMissing(record.DocType),
		Authority: orMissing(record.Authority),
		Year:      year,
	}
}

func orMissing(s *string) string {
	if s == nil || *s == "" {
		return MissingText
	}
	return *s
}
