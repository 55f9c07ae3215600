package encoder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxWordRunes is the longest basic token WordPiece will try to split.
const maxWordRunes = 200

// Batch is a set of tokenized texts padded to the longest one. All slices
// are flat [Size*SeqLen].
type Batch struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Size          int64
	SeqLen        int64
}

// Tokenizer is an uncased BERT tokenizer: basic splitting followed by
// greedy longest-match WordPiece.
type Tokenizer struct {
	vocab  *vocab
	maxLen int
}

// NewTokenizer loads vocab.txt. maxLen counts [CLS] and [SEP].
func NewTokenizer(vocabPath string, maxLen int) (*Tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{vocab: v, maxLen: maxLen}, nil
}

// Tokens returns the WordPiece tokens of text without special tokens or
// truncation.
func (t *Tokenizer) Tokens(text string) []string {
	var out []string
	for _, word := range basicTokens(text) {
		out = append(out, t.wordPiece(word)...)
	}
	return out
}

// IDs returns [CLS] tokens... [SEP], truncated to the maximum length.
func (t *Tokenizer) IDs(text string) []int64 {
	tokens := t.Tokens(text)
	if limit := t.maxLen - 2; len(tokens) > limit {
		tokens = tokens[:limit]
	}
	ids := make([]int64, 0, len(tokens)+2)
	ids = append(ids, t.vocab.cls)
	for _, tok := range tokens {
		ids = append(ids, t.vocab.id(tok))
	}
	return append(ids, t.vocab.sep)
}

// Batch tokenizes texts and pads every row to the longest sequence.
func (t *Tokenizer) Batch(texts []string) Batch {
	if len(texts) == 0 {
		return Batch{}
	}
	rows := make([][]int64, len(texts))
	longest := 0
	for i, text := range texts {
		rows[i] = t.IDs(text)
		longest = max(longest, len(rows[i]))
	}

	size, seqLen := int64(len(texts)), int64(longest)
	b := Batch{
		InputIDs:      make([]int64, size*seqLen),
		AttentionMask: make([]int64, size*seqLen),
		TokenTypeIDs:  make([]int64, size*seqLen),
		Size:          size,
		SeqLen:        seqLen,
	}
	for i, ids := range rows {
		off := i * longest
		for j, id := range ids {
			b.InputIDs[off+j] = id
			b.AttentionMask[off+j] = 1
		}
		for j := len(ids); j < longest; j++ {
			b.InputIDs[off+j] = t.vocab.pad
		}
	}
	return b
}

// wordPiece splits one basic token into vocabulary subwords, or [UNK].
func (t *Tokenizer) wordPiece(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{"[UNK]"}
	}
	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if t.vocab.has(piece) {
				pieces = append(pieces, piece)
				break
			}
		}
		if end == start {
			return []string{"[UNK]"}
		}
		start = end
	}
	return pieces
}

// basicTokens cleans, lowercases and strips accents, then splits on
// whitespace, punctuation and around CJK ideographs.
func basicTokens(text string) []string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
		case isSpace(r):
			sb.WriteByte(' ')
		case isCJK(r):
			sb.WriteByte(' ')
			sb.WriteRune(r)
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	cleaned := stripAccents(strings.ToLower(sb.String()))

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		start := 0
		for i, r := range word {
			if !isPunct(r) {
				continue
			}
			if i > start {
				tokens = append(tokens, word[start:i])
			}
			tokens = append(tokens, string(r))
			start = i + len(string(r))
		}
		if start < len(word) {
			tokens = append(tokens, word[start:])
		}
	}
	return tokens
}

func stripAccents(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// isPunct treats every non-alphanumeric printable ASCII symbol as
// punctuation, plus the Unicode P categories.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han) && r >= 0x3400
}
