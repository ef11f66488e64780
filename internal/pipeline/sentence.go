// Package pipeline holds the streaming stages between the providers and the
// event bus: utterance capture on the way in, sentence assembly and ordered
// speech synthesis on the way out.
package pipeline

import (
	"strings"
	"unicode/utf8"
)

// Sentence terminators, Latin and CJK. A terminator ends a sentence together
// with any closing quotes or brackets that follow it.
const terminators = ".!?。！？"

// closers may trail a terminator and stay attached to the sentence.
const closers = "\"'”’)】]）»"

// Assembler accumulates streamed text chunks and cuts them into complete
// sentences. Chunk boundaries carry no meaning; a sentence is released only
// once the text after its terminator proves no closing quote is still
// pending. Flush releases whatever remains at end of stream.
//
// Not safe for concurrent use; one assembler serves one reply.
type Assembler struct {
	buf strings.Builder
}

// Feed appends one chunk and returns any sentences completed by it, trimmed
// of surrounding whitespace. Whitespace-only fragments are dropped.
func (a *Assembler) Feed(chunk string) []string {
	a.buf.WriteString(chunk)

	var sentences []string
	text := a.buf.String()

	for {
		cut, ok := nextCut(text)
		if !ok {
			break
		}
		if s := strings.TrimSpace(text[:cut]); s != "" {
			sentences = append(sentences, s)
		}
		text = text[cut:]
	}

	if len(sentences) > 0 {
		a.buf.Reset()
		a.buf.WriteString(text)
	}
	return sentences
}

// Flush returns the trailing fragment without a terminator, if any, and
// resets the assembler for the next reply.
func (a *Assembler) Flush() string {
	s := strings.TrimSpace(a.buf.String())
	a.buf.Reset()
	return s
}

// Pending reports whether unreleased text is buffered.
func (a *Assembler) Pending() bool {
	return strings.TrimSpace(a.buf.String()) != ""
}

// nextCut finds the end of the first complete sentence in text. A sentence
// is complete when its terminator (plus trailing closers) is followed by at
// least one more rune, so that closers straddling a chunk boundary are never
// split off. Returns ok=false when no provably complete sentence exists yet.
func nextCut(text string) (int, bool) {
	for i, r := range text {
		if !strings.ContainsRune(terminators, r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		for end < len(text) {
			nr, size := utf8.DecodeRuneInString(text[end:])
			if !strings.ContainsRune(closers, nr) && !strings.ContainsRune(terminators, nr) {
				return end, true
			}
			end += size
		}
		// Terminator and closers run to the buffer's edge: the next chunk
		// may still extend this sentence.
		return 0, false
	}
	return 0, false
}
