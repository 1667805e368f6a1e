package models

// UploadedFile is an in-memory file supplied by the caller. Accepted
// extensions are pdf, docx, txt and md; anything else is treated as
// plain text.
type UploadedFile struct {
	Name string
	Data []byte
}

// Segment is the atomic unit of indexable text produced from one uploaded
// file. IDs take the form {filename}::p{page}::c{chunk} and are unique
// within a session as long as filenames are distinct.
type Segment struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
}

// RetrievedDocument is a corpus passage returned by the persistent
// knowledge index. AnnexRefs and FigureLabelNorm carry the normalized
// cross-reference metadata attached at ingestion time. Embedding is
// populated by similarity queries so the retriever can re-rank candidates;
// exact metadata fetches leave it nil.
type RetrievedDocument struct {
	ID              string
	Source          string
	Page            int
	Content         string
	AnnexRefs       []string
	FigureLabelNorm string
	Embedding       []float32
}

// Excerpt is a similarity hit from the ephemeral session index. Distance
// is a cosine distance, lower is closer.
type Excerpt struct {
	Text     string
	Metadata map[string]interface{}
	Distance float64
}
