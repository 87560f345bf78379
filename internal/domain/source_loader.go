package domain

import "context"

// SourceDocument is a raw document fetched from object storage, before
// chunking and embedding.
type SourceDocument struct {
	Bucket string
	Key    string
	Body   string
}

// SourceLoader streams documents from a storage prefix. Keys are visited in
// lexicographic order; startAfter resumes a previous run (empty starts from
// the beginning). The callback is invoked once per document and may stop the
// walk by returning an error.
type SourceLoader interface {
	LoadDocuments(ctx context.Context, prefix, startAfter string, suffixes []string, fn func(SourceDocument) error) error
}
