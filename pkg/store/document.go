package store

import "errors"

// FocusContext is the user-highlighted region of a document.
type FocusContext struct {
	DocumentID      string `json:"document_id,omitempty"`
	StartChar       int    `json:"start_char"`
	EndChar         int    `json:"end_char"`
	SurroundingText string `json:"surrounding_text,omitempty"`
}

// Overlaps reports whether the chunk span [start, end) intersects the focused
// range. A zero-width focus is a caret and matches the chunk containing it.
func (f *FocusContext) Overlaps(documentID string, start, end int) bool {
	if f == nil {
		return false
	}
	if f.DocumentID != "" && f.DocumentID != documentID {
		return false
	}
	if f.StartChar == f.EndChar {
		return start <= f.StartChar && f.StartChar < end
	}
	return f.StartChar < end && f.EndChar > start
}

// Chunk is a retrieved piece of a document with its scores.
type Chunk struct {
	ID            string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Content       string  `json:"-"`
	ChunkIndex    int     `json:"chunk_index"`
	StartChar     int     `json:"start_char"`
	EndChar       int     `json:"end_char"`
	TokenCount    int     `json:"-"`
	Similarity    float64 `json:"similarity"`
	BoostedScore  float64 `json:"boosted_score"`
}

// Source is the attribution kept for a chunk once the answer is produced.
type Source struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Similarity    float64 `json:"similarity"`
	BoostedScore  float64 `json:"boosted_score"`
	ChunkIndex    int     `json:"chunk_index"`
	StartChar     int     `json:"start_char"`
	EndChar       int     `json:"end_char"`
}

func (c Chunk) Source() Source {
	return Source{
		ChunkID:       c.ID,
		DocumentID:    c.DocumentID,
		DocumentTitle: c.DocumentTitle,
		Similarity:    c.Similarity,
		BoostedScore:  c.BoostedScore,
		ChunkIndex:    c.ChunkIndex,
		StartChar:     c.StartChar,
		EndChar:       c.EndChar,
	}
}

// Summary is the precomputed overview of a whole document.
type Summary struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// ErrSessionNotFound is returned by conversation stores for unknown sessions.
var ErrSessionNotFound = errors.New("chat session not found")
