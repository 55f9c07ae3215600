// Package encoder turns argument premises into fixed-size vectors with a
// pretrained BERT-style transformer exported to ONNX.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/crimson-sun/argval/internal/logging"
)

// Encoder maps texts to pooled sentence vectors of length Dim.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	Close() error
}

// Config locates the model files. It is passed by value and never mutated.
type Config struct {
	ModelPath string
	VocabPath string
	// LibraryPath is the onnxruntime shared library. Empty means
	// libonnxruntime.so next to the model.
	LibraryPath string
	MaxSeqLen   int
	// BatchSize bounds how many texts go through one inference call.
	BatchSize int
	Threads   int
}

// DefaultConfig returns the settings used when only paths are known.
func DefaultConfig(modelPath, vocabPath string) Config {
	return Config{
		ModelPath: modelPath,
		VocabPath: vocabPath,
		MaxSeqLen: 128,
		BatchSize: 32,
		Threads:   4,
	}
}

func (c Config) libraryPath() string {
	if c.LibraryPath != "" {
		return c.LibraryPath
	}
	return filepath.Join(filepath.Dir(c.ModelPath), "libonnxruntime.so")
}

// ONNXEncoder runs tokenize → transformer → masked mean pool.
type ONNXEncoder struct {
	cfg     Config
	session *session
	tok     *Tokenizer
	log     *slog.Logger
}

// Open loads the vocabulary and creates the inference session.
func Open(cfg Config) (*ONNXEncoder, error) {
	if cfg.MaxSeqLen <= 2 {
		return nil, fmt.Errorf("encoder: max sequence length %d too small", cfg.MaxSeqLen)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	log := logging.New("encoder")

	tok, err := NewTokenizer(cfg.VocabPath, cfg.MaxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	sess, err := openSession(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	log.Info("encoder ready",
		logging.KeyPath, cfg.ModelPath,
		"dim", sess.dim,
		"device", sess.device)
	return &ONNXEncoder{cfg: cfg, session: sess, tok: tok, log: log}, nil
}

// Dim is the width of the pooled vectors.
func (e *ONNXEncoder) Dim() int { return int(e.session.dim) }

// Encode returns one pooled vector per text. Texts are processed in
// chunks of Config.BatchSize; ctx is checked between chunks.
func (e *ONNXEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.cfg.BatchSize, len(texts))

		batch := e.tok.Batch(texts[start:end])
		hidden, err := e.session.run(batch)
		if err != nil {
			return nil, fmt.Errorf("encoder: %w", err)
		}
		out = append(out, meanPool(hidden, batch.AttentionMask, batch.Size, batch.SeqLen, e.session.dim)...)
	}
	return out, nil
}

// Close releases the session.
func (e *ONNXEncoder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.close()
}
