package domain

// RecordFilter restricts a retrieval call to one record type.
// Text-only filtering is expressed by excluding image records (older text
// documents in the index carry no document_type field at all), image-only
// filtering by requiring document_type == image.
type RecordFilter string

const (
	// FilterAll applies no type restriction.
	FilterAll RecordFilter = "all"
	// FilterTextOnly excludes image records.
	FilterTextOnly RecordFilter = "text"
	// FilterImageOnly includes only image records.
	FilterImageOnly RecordFilter = "image"
)
