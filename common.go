package treekem

func dup(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func zeroize(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
