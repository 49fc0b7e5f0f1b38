package model

import "time"

// IndexState tracks where an artifact is in the chunk/embed pipeline
type IndexState string

const (
	IndexPending IndexState = "pending" // Registered, not yet chunked/embedded
	IndexQueued  IndexState = "queued"  // Embedding capability was down; retried by scheduler
	IndexReady   IndexState = "indexed" // Chunks embedded and searchable
)

// Artifact is one uploaded evidence document. Content is immutable once
// stored; a re-upload creates a new Artifact.
type Artifact struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	AccountID     string     `json:"account_id" gorm:"index"`
	Filename      string     `json:"filename"`
	MimeType      string     `json:"mime_type"`
	Checksum      string     `json:"checksum" gorm:"index"`        // sha256 of content, for dedupe
	AccreditorTag string     `json:"accreditor_tag,omitempty"`
	Author        string     `json:"author,omitempty"`             // Authorship metadata, if supplied
	SignedBy      string     `json:"signed_by,omitempty"`          // Recognized signer, if supplied
	EffectiveDate *time.Time `json:"effective_date,omitempty"`     // Institution-supplied document date
	UploadedAt    time.Time  `json:"uploaded_at"`
	IndexState    IndexState `json:"index_state" gorm:"index"`
	Text          string     `json:"-"`                            // Extracted text; immutable once stored
}

// Span is a page/offset range inside an artifact
type Span struct {
	Page  int `json:"page"`
	Start int `json:"start"` // Rune offset within the page
	End   int `json:"end"`
}

// ArtifactChunk is an ordered text span of an artifact with provenance and
// an embedding vector. Created once at ingestion; deleted only with the
// parent artifact.
type ArtifactChunk struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ArtifactID string    `json:"artifact_id" gorm:"index"`
	Ordinal    int       `json:"ordinal"` // 0-based position in the artifact
	Text       string    `json:"text"`
	Page       int       `json:"page"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Citations  int       `json:"citations"`          // Citation markers found in this chunk
	Embedding  []float32 `json:"-" gorm:"serializer:json"`
	CreatedAt  time.Time `json:"created_at"`
}

// Span returns the chunk's provenance as a Span value
func (c ArtifactChunk) Span() Span {
	return Span{Page: c.Page, Start: c.Start, End: c.End}
}
