// Copyright 2025 Introlix
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

package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/introlix/explorer/pkg/config"
)

// Chunk is one token-bounded slice of a page's text.
//
// ChunkID is zero-based and unique only within the text that produced it.
// TokenCount reflects the final text including any prepended overlap.
type Chunk struct {
	ChunkID    int    `json:"chunk_id"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Chunker splits extracted text into overlapping, token-bounded chunks.
//
// Splitting respects structure top-down: paragraphs first, sentences only
// when a paragraph alone exceeds the chunk size. Sentences are never split,
// so a single sentence longer than the chunk size is emitted intact as one
// oversized chunk.
//
// Every chunk after the first carries overlap: whole trailing sentences of
// the previous chunk, newest first, up to the overlap token budget. Token
// counts are recomputed after the overlap is prepended, so a chunk may
// legitimately count up to chunk size plus overlap tokens.
type Chunker struct {
	chunkSize int
	overlap   int
	counter   TokenCounter
}

// New creates a Chunker with a tiktoken counter for the configured encoding.
func New(cfg config.ChunkerConfig) (*Chunker, error) {
	counter, err := NewTiktokenCounter(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return NewWithCounter(cfg.ChunkSize, cfg.Overlap, counter), nil
}

// NewWithCounter creates a Chunker with an explicit token counter.
func NewWithCounter(chunkSize, overlap int, counter TokenCounter) *Chunker {
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		counter:   counter,
	}
}

// Chunk splits text into chunks. It is total: empty or whitespace-only
// input yields no chunks, and no input is ever an error.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if c.counter.Count(text) <= c.chunkSize {
		trimmed := strings.TrimSpace(text)
		return []Chunk{{
			ChunkID:    0,
			Text:       trimmed,
			TokenCount: c.counter.Count(trimmed),
		}}
	}

	var chunks []Chunk
	current := ""
	currentTokens := 0

	flush := func() {
		if strings.TrimSpace(current) == "" {
			return
		}
		text, tokens := current, currentTokens
		if len(chunks) > 0 {
			text, tokens = c.addOverlap(chunks[len(chunks)-1].Text, current)
		}
		chunks = append(chunks, Chunk{
			ChunkID:    len(chunks),
			Text:       text,
			TokenCount: tokens,
		})
	}

	for _, paragraph := range splitParagraphs(text) {
		paragraphTokens := c.counter.Count(paragraph)

		switch {
		case paragraphTokens > c.chunkSize:
			// Paragraph alone exceeds the budget; go sentence by sentence.
			for _, sentence := range splitSentences(paragraph) {
				sentenceTokens := c.counter.Count(sentence)
				if currentTokens+sentenceTokens <= c.chunkSize {
					if current != "" {
						current += " "
					}
					current += sentence
					currentTokens += sentenceTokens
				} else {
					flush()
					current = sentence
					currentTokens = sentenceTokens
				}
			}
			flush()
			current, currentTokens = "", 0

		case currentTokens+paragraphTokens <= c.chunkSize:
			if current != "" {
				current += "\n\n"
			}
			current += paragraph
			currentTokens += paragraphTokens

		default:
			flush()
			current = paragraph
			currentTokens = paragraphTokens
		}
	}

	flush()
	return chunks
}

// addOverlap prepends trailing sentences of the previous chunk to the next
// chunk's text, newest first, while they fit the overlap budget. Returns the
// merged text and its recomputed token count.
func (c *Chunker) addOverlap(previous, current string) (string, int) {
	overlap := ""
	overlapTokens := 0

	sentences := splitSentences(previous)
	for i := len(sentences) - 1; i >= 0; i-- {
		sentenceTokens := c.counter.Count(sentences[i])
		if overlapTokens+sentenceTokens > c.overlap {
			break
		}
		if overlap != "" {
			overlap = sentences[i] + " " + overlap
		} else {
			overlap = sentences[i]
		}
		overlapTokens += sentenceTokens
	}

	merged := current
	if overlap != "" {
		merged = overlap + " " + current
	}
	return merged, c.counter.Count(merged)
}

var paragraphSeparator = regexp.MustCompile(`\n\s*\n`)

// splitParagraphs splits on blank lines and drops empty paragraphs.
func splitParagraphs(text string) []string {
	parts := paragraphSeparator.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// splitSentences splits at sentence-ending punctuation followed by
// whitespace and an ASCII uppercase letter. The punctuation stays with the
// left sentence. Abbreviations followed by lowercase text do not split.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	i := 0

	for i < len(text) {
		r, width := utf8.DecodeRuneInString(text[i:])
		if r == '.' || r == '!' || r == '?' {
			j := i + width
			sawSpace := false
			for j < len(text) {
				r2, w2 := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(r2) {
					break
				}
				sawSpace = true
				j += w2
			}
			if sawSpace && j < len(text) {
				r3, _ := utf8.DecodeRuneInString(text[j:])
				if r3 >= 'A' && r3 <= 'Z' {
					if s := strings.TrimSpace(text[start : i+width]); s != "" {
						sentences = append(sentences, s)
					}
					start = j
					i = j
					continue
				}
			}
		}
		i += width
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
