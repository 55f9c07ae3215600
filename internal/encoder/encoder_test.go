package encoder

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testModelPath = "../../models/model_quantized.onnx"
	testVocabPath = "../../models/vocab.txt"
)

func skipIfNoModel(t *testing.T) {
	t.Helper()
	for _, p := range []string{testModelPath, testVocabPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Skip("encoder model files not found under models/")
		}
	}
}

func TestEncodeBatches(t *testing.T) {
	skipIfNoModel(t)

	cfg := DefaultConfig(testModelPath, testVocabPath)
	cfg.BatchSize = 2
	enc, err := Open(cfg)
	require.NoError(t, err)
	defer enc.Close()

	texts := []string{
		"We should protect the rainforest",
		"Lower taxes help small businesses",
		"Everyone deserves equal treatment",
	}
	vecs, err := enc.Encode(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for _, v := range vecs {
		assert.Len(t, v, enc.Dim())
	}
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestEncodeCancelled(t *testing.T) {
	skipIfNoModel(t)

	enc, err := Open(DefaultConfig(testModelPath, testVocabPath))
	require.NoError(t, err)
	defer enc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = enc.Encode(ctx, []string{"text"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRejectsShortSequence(t *testing.T) {
	_, err := Open(Config{ModelPath: "m.onnx", VocabPath: "v.txt", MaxSeqLen: 2})
	assert.Error(t, err)
}
