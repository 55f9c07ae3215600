package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/crimson-sun/argval/internal/atomicfile"
)

// Tensor is a dense F32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Len is the element count implied by Shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// WriteTensors stores tensors in the safetensors layout: an 8-byte
// little-endian header length, a JSON header, then the raw F32 data.
func WriteTensors(path string, tensors map[string]Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	var body bytes.Buffer
	for _, name := range names {
		t := tensors[name]
		if t.Len() != len(t.Data) {
			return fmt.Errorf("codec: tensor %q has %d values for shape %v", name, len(t.Data), t.Shape)
		}
		start := body.Len()
		for _, v := range t.Data {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
			body.Write(b[:])
		}
		header[name] = tensorMeta{Dtype: "F32", Shape: t.Shape, DataOffsets: [2]int{start, body.Len()}}
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("codec: encode tensor header: %w", err)
	}
	out := make([]byte, 8, 8+len(hdr)+body.Len())
	binary.LittleEndian.PutUint64(out, uint64(len(hdr)))
	out = append(out, hdr...)
	out = append(out, body.Bytes()...)

	if err := atomicfile.Write(path, out, 0o644); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	return nil
}

// ReadTensors loads every tensor in a safetensors file. Only F32 data is
// accepted, and offsets must lie inside the data section. Any structural
// problem is reported as a SecurityError.
func ReadTensors(path string) (map[string]Tensor, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxArtifactSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("codec: read %s: %w", path, err)
	}
	if len(data) > MaxArtifactSize {
		return nil, nil, reject(path, "file exceeds %d bytes", MaxArtifactSize)
	}
	if len(data) < 8 {
		return nil, nil, reject(path, "file too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, nil, reject(path, "header length %d exceeds file size", headerLen)
	}
	payload := data[8+headerLen:]

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, nil, reject(path, "malformed header: %v", err)
	}

	var metadata map[string]string
	tensors := make(map[string]Tensor, len(header))
	for name, raw := range header {
		if name == "__metadata__" {
			if err := json.Unmarshal(raw, &metadata); err != nil {
				return nil, nil, reject(path, "malformed metadata: %v", err)
			}
			continue
		}
		var meta tensorMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, nil, reject(path, "tensor %q: malformed metadata: %v", name, err)
		}
		if meta.Dtype != "F32" {
			return nil, nil, reject(path, "tensor %q: expected dtype F32, got %s", name, meta.Dtype)
		}
		n := 1
		for _, d := range meta.Shape {
			if d < 0 || (d > 0 && n > MaxArtifactSize/d) {
				return nil, nil, reject(path, "tensor %q: invalid shape %v", name, meta.Shape)
			}
			n *= d
		}
		start, end := meta.DataOffsets[0], meta.DataOffsets[1]
		if start < 0 || end < start || end > len(payload) {
			return nil, nil, reject(path, "tensor %q: data range [%d:%d] outside payload of %d bytes", name, start, end, len(payload))
		}
		if end-start != n*4 {
			return nil, nil, reject(path, "tensor %q: data size %d doesn't match shape %v", name, end-start, meta.Shape)
		}

		values := make([]float32, n)
		for i := range values {
			v := math.Float32frombits(binary.LittleEndian.Uint32(payload[start+i*4:]))
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, nil, reject(path, "tensor %q: non-finite value at %d", name, i)
			}
			values[i] = v
		}
		tensors[name] = Tensor{Shape: meta.Shape, Data: values}
	}
	return tensors, metadata, nil
}
