package encoder

import (
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// runtimeEnv initializes the process-wide onnxruntime environment once.
var runtimeEnv struct {
	once sync.Once
	err  error
}

func initRuntime(libPath string) error {
	runtimeEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		runtimeEnv.err = ort.InitializeEnvironment()
	})
	return runtimeEnv.err
}

var requiredInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

type session struct {
	sess   *ort.DynamicAdvancedSession
	output string
	dim    int64
	device string
}

// openSession prefers the CUDA execution provider and falls back to the
// CPU with a warning when CUDA is unavailable.
func openSession(cfg Config, log *slog.Logger) (*session, error) {
	if err := initRuntime(cfg.libraryPath()); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info: %w", err)
	}
	if err := checkInputs(inputs); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 3 || dims[2] <= 0 {
		return nil, fmt.Errorf("onnx: want [batch, seq, dim] hidden states, got %v", dims)
	}
	s := &session{output: outputs[0].Name, dim: dims[2]}

	s.sess, err = newDynamicSession(cfg, s.output, true)
	if err == nil {
		s.device = "cuda"
		return s, nil
	}
	log.Warn("CUDA execution provider unavailable, using CPU", "error", err)

	s.sess, err = newDynamicSession(cfg, s.output, false)
	if err != nil {
		return nil, err
	}
	s.device = "cpu"
	return s, nil
}

func newDynamicSession(cfg Config, output string, cuda bool) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("onnx: intra-op threads: %w", err)
		}
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("onnx: inter-op threads: %w", err)
	}

	if cuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("onnx: cuda options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("onnx: cuda provider: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, requiredInputs, []string{output}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}
	return sess, nil
}

func checkInputs(inputs []ort.InputOutputInfo) error {
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	for _, name := range requiredInputs {
		if !have[name] {
			return fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	return nil
}

// run returns the flat [batch*seq*dim] hidden states for one batch.
func (s *session) run(b Batch) ([]float32, error) {
	shape := ort.NewShape(b.Size, b.SeqLen)

	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, data := range [][]int64{b.InputIDs, b.AttentionMask, b.TokenTypeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: input tensor: %w", err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(b.Size, b.SeqLen, s.dim))
	if err != nil {
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.sess.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	return append([]float32(nil), out.GetData()...), nil
}

func (s *session) close() error {
	return s.sess.Destroy()
}
