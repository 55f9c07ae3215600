package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/taxonomy"
)

// ErrInvalid wraps every configuration problem found before a run starts.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds all argval configuration.
type Config struct {
	DataDir     string   `yaml:"data_dir" validate:"required"`
	ModelDir    string   `yaml:"model_dir" validate:"required"`
	OutputDir   string   `yaml:"output_dir" validate:"required"`
	Levels      []string `yaml:"levels" validate:"min=1,dive,required"`
	Classifiers []string `yaml:"classifiers" validate:"min=1,dive,required"`
	// RunValidation scores trained models on the validation partition.
	RunValidation bool `yaml:"validate"`
	Parallel      int  `yaml:"parallel" validate:"gte=1"`

	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
	Linear LinearConfig `yaml:"linear"`
	Neural NeuralConfig `yaml:"neural"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// OutputConfig holds evaluation sink settings.
type OutputConfig struct {
	Style      string `yaml:"style" validate:"oneof=json table"`
	Verbosity  string `yaml:"verbosity" validate:"oneof=summary detailed full"`
	ReportFile string `yaml:"report_file"`
	LedgerPath string `yaml:"ledger"`
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// LinearConfig holds the SVM ensemble solver settings.
type LinearConfig struct {
	C       float64 `yaml:"c" validate:"gt=0"`
	MaxIter int     `yaml:"max_iter" validate:"gte=1"`
	Tol     float64 `yaml:"tol" validate:"gt=0"`
}

// NeuralConfig holds the encoder and head training settings.
type NeuralConfig struct {
	EncoderPath  string  `yaml:"encoder_path"`
	VocabPath    string  `yaml:"vocab_path"`
	MaxSeqLen    int     `yaml:"max_seq_len" validate:"gt=2"`
	Epochs       int     `yaml:"epochs" validate:"gte=1"`
	LearningRate float64 `yaml:"learning_rate" validate:"gt=0"`
	BatchSize    int     `yaml:"batch_size" validate:"gte=1"`
	WeightDecay  float64 `yaml:"weight_decay" validate:"gte=0"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DataDir:       getenv("ARGVAL_DATA_DIR", "data"),
		ModelDir:      getenv("ARGVAL_MODEL_DIR", "models"),
		OutputDir:     getenv("ARGVAL_OUTPUT_DIR", "output"),
		Levels:        getenvList("ARGVAL_LEVELS", taxonomy.DefaultLevels()),
		Classifiers:   getenvList("ARGVAL_CLASSIFIERS", []string{"b"}),
		RunValidation: getenvBool("ARGVAL_VALIDATE", false),
		Parallel:      getenvInt("ARGVAL_PARALLEL", 1),
		Log: LogConfig{
			Level:  getenv("ARGVAL_LOG_LEVEL", "info"),
			Format: getenv("ARGVAL_LOG_FORMAT", "text"),
		},
		Output: OutputConfig{
			Style:      getenv("ARGVAL_OUTPUT_STYLE", "table"),
			Verbosity:  getenv("ARGVAL_VERBOSITY", "summary"),
			ReportFile: os.Getenv("ARGVAL_REPORT_FILE"),
			LedgerPath: os.Getenv("ARGVAL_LEDGER"),
			WebhookURL: os.Getenv("ARGVAL_WEBHOOK_URL"),
		},
		Linear: LinearConfig{
			C:       getenvFloat("ARGVAL_SVM_C", 18),
			MaxIter: getenvInt("ARGVAL_SVM_MAX_ITER", 10000),
			Tol:     getenvFloat("ARGVAL_SVM_TOL", 1e-4),
		},
		Neural: NeuralConfig{
			EncoderPath:  getenv("ARGVAL_ENCODER_PATH", "models/encoder/model.onnx"),
			VocabPath:    getenv("ARGVAL_VOCAB_PATH", "models/encoder/vocab.txt"),
			MaxSeqLen:    getenvInt("ARGVAL_MAX_SEQ_LEN", 128),
			Epochs:       getenvInt("ARGVAL_EPOCHS", 20),
			LearningRate: getenvFloat("ARGVAL_LEARNING_RATE", 0.05),
			BatchSize:    getenvInt("ARGVAL_BATCH_SIZE", 8),
			WeightDecay:  getenvFloat("ARGVAL_WEIGHT_DECAY", 0.01),
		},
	}
}

// LoadFile reads the environment defaults and overlays the YAML file at
// path. Keys present in the file win; unknown keys are an error.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and that every classifier selection
// names a registered backend. All problems are reported together.
func (c Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, fe := range ves {
			errs = append(errs, describe(fe))
		}
	}

	if len(c.Classifiers) > 0 {
		if _, err := c.Backends(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Backends resolves the classifier selection to registered backend names.
func (c Config) Backends() ([]string, error) {
	names, err := backend.Resolve(c.Classifiers)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no classifier selected")
	}
	return names, nil
}

// Settings maps the backend sections to backend construction settings.
func (c Config) Settings() backend.Settings {
	return backend.Settings{
		Linear: backend.LinearSettings{
			C:       c.Linear.C,
			MaxIter: c.Linear.MaxIter,
			Tol:     c.Linear.Tol,
		},
		Neural: backend.NeuralSettings{
			EncoderPath:  c.Neural.EncoderPath,
			VocabPath:    c.Neural.VocabPath,
			MaxSeqLen:    c.Neural.MaxSeqLen,
			Epochs:       c.Neural.Epochs,
			LearningRate: c.Neural.LearningRate,
			BatchSize:    c.Neural.BatchSize,
			WeightDecay:  c.Neural.WeightDecay,
		},
	}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %v", field, fe.Value())
	default:
		return fmt.Sprintf("%s must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getenvList splits a comma-separated variable, dropping empty items.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
