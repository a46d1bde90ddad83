package port

import "vaultindex/internal/domain"

// DocumentSource enumerates and reads the live documents backing the
// index.
type DocumentSource interface {
	// ListAll returns every indexable document.
	ListAll() ([]domain.DocumentInfo, error)

	// Read returns the raw text of one document. May fail per-document.
	Read(id string) (string, error)

	// Exists reports whether the document is still present.
	Exists(id string) bool
}
