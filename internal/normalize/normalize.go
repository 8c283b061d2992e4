// Package normalize cleans parsed statute text before embedding.
// Cleaning is an allow-list: Japanese scripts, CJK punctuation, word
// characters and whitespace survive, everything else is removed.
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redwell/law-search/internal/lawxml"
)

// allowed keeps hiragana, katakana, the common kanji block and CJK
// symbols/punctuation alongside ASCII word characters and whitespace.
var disallowed = regexp.MustCompile(`[^\w\s\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}\x{3000}-\x{303F}]`)

// sentence terminators used when splitting oversized fragments.
const sentenceEnders = "。！？"

type Normalizer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Clean removes disallowed characters and collapses whitespace runs,
// including ideographic space, into single ASCII spaces. Clean is
// idempotent: Clean(Clean(s)) == Clean(s).
func (n *Normalizer) Clean(text string) string {
	cleaned := disallowed.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Document returns a normalized copy of doc. Fragment content is
// cleaned and fragments that end up empty are dropped. The input is
// not modified. Splitting long fragments is a separate step, see Split.
func (n *Normalizer) Document(doc *lawxml.StatuteDocument) *lawxml.StatuteDocument {
	out := *doc
	out.Name = n.Clean(doc.Name)
	out.Description = n.Clean(doc.Description)
	out.Fragments = make([]lawxml.Fragment, 0, len(doc.Fragments))

	processedAt := time.Now().UTC().Format(time.RFC3339)
	for _, frag := range doc.Fragments {
		content := n.Clean(frag.Content)
		if content == "" {
			n.logger.Debug("dropping fragment with no content after cleaning",
				"law_id", frag.LawID, "number", frag.Number)
			continue
		}

		frag.Content = content
		frag.Metadata = frag.CloneMetadata()
		frag.Metadata["content_length"] = utf8.RuneCountInString(content)
		frag.Metadata["word_count"] = len(strings.Fields(content))
		frag.Metadata["processed_at"] = processedAt
		out.Fragments = append(out.Fragments, frag)
	}
	return &out
}

// Split breaks a fragment longer than maxLen runes at sentence
// boundaries. Sentences are packed greedily; a single sentence longer
// than the limit becomes its own part. Parts are numbered with a "-N"
// suffix and carry the original number in metadata so the source
// article stays traceable. A fragment within the limit comes back
// unchanged as a single-element slice.
func (n *Normalizer) Split(frag lawxml.Fragment, maxLen int) []lawxml.Fragment {
	if maxLen <= 0 || utf8.RuneCountInString(frag.Content) <= maxLen {
		return []lawxml.Fragment{frag}
	}
	sentences := splitSentences(frag.Content)

	var chunks []string
	var current strings.Builder
	currentLen := 0
	for _, s := range sentences {
		sLen := utf8.RuneCountInString(s)
		if currentLen > 0 && currentLen+sLen > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(s)
		currentLen += sLen
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) <= 1 {
		return []lawxml.Fragment{frag}
	}

	parts := make([]lawxml.Fragment, 0, len(chunks))
	for i, chunk := range chunks {
		part := frag
		part.Number = fmt.Sprintf("%s-%d", frag.Number, i+1)
		part.Content = chunk
		part.Metadata = frag.CloneMetadata()
		part.Metadata["split_from"] = frag.Number
		part.Metadata["split_index"] = i + 1
		part.Metadata["content_length"] = utf8.RuneCountInString(chunk)
		part.Metadata["word_count"] = len(strings.Fields(chunk))
		parts = append(parts, part)
	}
	n.logger.Debug("split oversized fragment",
		"law_id", frag.LawID, "number", frag.Number, "parts", len(parts))
	return parts
}

// splitSentences cuts text after each sentence terminator, keeping the
// terminator with its sentence. Trailing text without a terminator
// becomes the final sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if strings.ContainsRune(sentenceEnders, r) {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
