package argval

type options struct {
	modelDir   string
	level      string
	labels     []string
	valuesPath string
}

// Option configures a Classifier.
type Option func(*options)

// WithModelDir sets the directory passed to argval train with -m.
// Default: "models".
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithLevel selects the taxonomy level to load, e.g. "2" or "4a".
func WithLevel(id string) Option {
	return func(o *options) {
		o.level = id
	}
}

// WithLabels sets the level's labels explicitly, in training order.
func WithLabels(labels ...string) Option {
	return func(o *options) {
		o.labels = append([]string(nil), labels...)
	}
}

// WithValues reads the level's labels from a values.json file. Ignored when
// WithLabels is given.
func WithValues(path string) Option {
	return func(o *options) {
		o.valuesPath = path
	}
}

func defaultOptions() options {
	return options{modelDir: "models"}
}
