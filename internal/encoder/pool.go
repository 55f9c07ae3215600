package encoder

// meanPool averages hidden states over the positions where mask is 1.
// hidden is flat [size*seqLen*dim]; mask is flat [size*seqLen]. A row
// with no real tokens pools to the zero vector.
func meanPool(hidden []float32, mask []int64, size, seqLen, dim int64) [][]float32 {
	out := make([][]float32, size)
	for b := int64(0); b < size; b++ {
		vec := make([]float32, dim)
		var n float32
		for s := int64(0); s < seqLen; s++ {
			if mask[b*seqLen+s] != 1 {
				continue
			}
			n++
			tok := hidden[(b*seqLen+s)*dim : (b*seqLen+s+1)*dim]
			for d, v := range tok {
				vec[d] += v
			}
		}
		if n > 0 {
			for d := range vec {
				vec[d] /= n
			}
		}
		out[b] = vec
	}
	return out
}
