package lzx

const maxCodeLen = 16

// huffman is a canonical code table decoded one bit at a time.
type huffman struct {
	count  [maxCodeLen + 1]uint16
	symbol []uint16
}

// build constructs the table from code lengths. Incomplete codes are
// accepted; over-subscribed ones are not.
func (h *huffman) build(lens []byte) error {
	for i := range h.count {
		h.count[i] = 0
	}
	for _, l := range lens {
		if l > maxCodeLen {
			return ErrCorrupt
		}
		h.count[l]++
	}

	left := 1
	for l := 1; l <= maxCodeLen; l++ {
		left <<= 1
		left -= int(h.count[l])
		if left < 0 {
			return ErrCorrupt
		}
	}

	var offs [maxCodeLen + 1]uint16
	for l := 1; l < maxCodeLen; l++ {
		offs[l+1] = offs[l] + h.count[l]
	}
	if cap(h.symbol) < len(lens) {
		h.symbol = make([]uint16, len(lens))
	}
	h.symbol = h.symbol[:len(lens)]
	for sym, l := range lens {
		if l != 0 {
			h.symbol[offs[l]] = uint16(sym)
			offs[l]++
		}
	}
	return nil
}

func (h *huffman) decode(br *bitReader) (int, error) {
	br.ensure(maxCodeLen)
	bits := br.peek(maxCodeLen)

	code, first, index := 0, 0, 0
	for l := uint(1); l <= maxCodeLen; l++ {
		code |= int(bits>>(maxCodeLen-l)) & 1
		count := int(h.count[l])
		if code-count < first {
			br.remove(l)
			return int(h.symbol[index+(code-first)]), nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, ErrCorrupt
}
