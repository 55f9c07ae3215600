package encoder

import (
	"bufio"
	"fmt"
	"os"
)

// vocab is a WordPiece vocabulary; a token's ID is its 0-based line number.
type vocab struct {
	ids    map[string]int64
	tokens []string

	pad, unk, cls, sep int64
}

func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	v := &vocab{ids: make(map[string]int64, 32000)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tok := sc.Text()
		if _, dup := v.ids[tok]; !dup {
			v.ids[tok] = int64(len(v.tokens))
		}
		v.tokens = append(v.tokens, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}
	if len(v.tokens) == 0 {
		return nil, fmt.Errorf("vocab: %s is empty", path)
	}

	for name, dst := range map[string]*int64{"[PAD]": &v.pad, "[UNK]": &v.unk, "[CLS]": &v.cls, "[SEP]": &v.sep} {
		id, ok := v.ids[name]
		if !ok {
			return nil, fmt.Errorf("vocab: %s lacks special token %s", path, name)
		}
		*dst = id
	}
	return v, nil
}

func (v *vocab) id(token string) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unk
}

func (v *vocab) has(token string) bool {
	_, ok := v.ids[token]
	return ok
}

func (v *vocab) size() int { return len(v.tokens) }
