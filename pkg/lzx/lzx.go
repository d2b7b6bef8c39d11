// Package lzx implements an LZX decompressor for the Xbox 360 XMemCompress
// container used by RSC5 resource payloads.
package lzx

import (
	"errors"
	"fmt"
)

// Errors returned by the decoder.
var (
	ErrCorrupt     = errors.New("lzx: corrupt stream")
	ErrShortOutput = errors.New("lzx: stream ended before expected size")
)

const (
	minMatch = 2

	numChars            = 256
	numPrimaryLengths   = 7
	numSecondaryLengths = 249
	pretreeElements     = 20
	alignedElements     = 8

	blockVerbatim     = 1
	blockAligned      = 2
	blockUncompressed = 3

	// DefaultWindowBits is the XMem default 128 KiB window.
	DefaultWindowBits = 17
)

var (
	extraBits    [52]uint8
	positionBase [51]uint32
)

func init() {
	j := uint8(0)
	for i := 0; i < 51; i += 2 {
		extraBits[i] = j
		extraBits[i+1] = j
		if i != 0 && j < 17 {
			j++
		}
	}
	base := uint32(0)
	for i := range positionBase {
		positionBase[i] = base
		base += 1 << extraBits[i]
	}
}

// Decoder holds the LZX window and state shared by consecutive frames of one
// stream. A Decoder must not be used concurrently.
type Decoder struct {
	window     []byte
	windowSize uint32
	windowPos  uint32
	framePos   uint32

	r0, r1, r2   uint32
	mainElements int

	headerRead     bool
	blockType      int
	blockLength    uint32
	blockRemaining uint32

	intelStarted  bool
	intelFileSize int32
	intelCurPos   int32
	frames        int

	pretreeLens [pretreeElements]byte
	mainLens    []byte
	lengthLens  [numSecondaryLengths]byte
	alignedLens [alignedElements]byte

	pretree, mainTree, lengthTree, alignedTree huffman
}

// NewDecoder creates a decoder for a window of 1<<windowBits bytes.
func NewDecoder(windowBits int) (*Decoder, error) {
	if windowBits < 15 || windowBits > 21 {
		return nil, fmt.Errorf("lzx: window bits %d out of range [15,21]", windowBits)
	}

	posnSlots := windowBits << 1
	switch windowBits {
	case 20:
		posnSlots = 42
	case 21:
		posnSlots = 50
	}

	d := &Decoder{
		windowSize:   1 << windowBits,
		mainElements: numChars + posnSlots<<3,
	}
	d.window = make([]byte, d.windowSize)
	d.mainLens = make([]byte, d.mainElements)
	d.Reset()
	return d, nil
}

// Reset prepares the decoder for a new stream.
func (d *Decoder) Reset() {
	d.windowPos = 0
	d.framePos = 0
	d.r0, d.r1, d.r2 = 1, 1, 1
	d.headerRead = false
	d.blockType = 0
	d.blockLength = 0
	d.blockRemaining = 0
	d.intelStarted = false
	d.intelFileSize = 0
	d.intelCurPos = 0
	d.frames = 0
	for i := range d.mainLens {
		d.mainLens[i] = 0
	}
	for i := range d.lengthLens {
		d.lengthLens[i] = 0
	}
}

// DecodeFrame decodes one frame of len(out) bytes from in. Block state and
// the window carry over to the next call.
func (d *Decoder) DecodeFrame(in []byte, out []byte) error {
	frameSize := uint32(len(out))
	if frameSize == 0 {
		return nil
	}
	if d.framePos+frameSize > d.windowSize {
		return fmt.Errorf("%w: frame of %d bytes crosses the window end", ErrCorrupt, frameSize)
	}

	br := &bitReader{data: in}
	if !d.headerRead {
		if br.readBits(1) == 1 {
			hi := br.readBits(16)
			lo := br.readBits(16)
			d.intelFileSize = int32(hi<<16 | lo)
		}
		d.headerRead = true
	}

	todo := int64(d.framePos) + int64(frameSize) - int64(d.windowPos)
	for todo > 0 {
		if d.blockRemaining == 0 {
			if err := d.readBlockHeader(br); err != nil {
				return err
			}
		}

		run := int64(d.blockRemaining)
		if run > todo {
			run = todo
		}
		todo -= run
		d.blockRemaining -= uint32(run)

		var err error
		switch d.blockType {
		case blockVerbatim, blockAligned:
			run, err = d.decodeMatches(br, run)
		case blockUncompressed:
			if br.remaining() < int(run) {
				return fmt.Errorf("%w: uncompressed block truncated", ErrCorrupt)
			}
			copy(d.window[d.windowPos:], br.data[br.pos:br.pos+int(run)])
			br.pos += int(run)
			d.windowPos += uint32(run)
			run = 0
		default:
			return fmt.Errorf("%w: bad block type %d", ErrCorrupt, d.blockType)
		}
		if err != nil {
			return err
		}

		// A match may overrun the frame. The excess is already in the window
		// and counts towards the next frame.
		if run < 0 {
			over := uint32(-run)
			if over > d.blockRemaining {
				return fmt.Errorf("%w: match overran block", ErrCorrupt)
			}
			d.blockRemaining -= over
			todo += run
		}
	}

	if d.windowPos-d.framePos < frameSize {
		return fmt.Errorf("%w: decoded %d bytes for a %d byte frame", ErrShortOutput, d.windowPos-d.framePos, frameSize)
	}

	copy(out, d.window[d.framePos:d.framePos+frameSize])
	d.translateE8(out)

	d.framePos += frameSize
	if d.framePos == d.windowSize {
		d.framePos = 0
	}
	if d.windowPos == d.windowSize {
		d.windowPos = 0
	}
	d.frames++
	return nil
}

func (d *Decoder) readBlockHeader(br *bitReader) error {
	if d.blockType == blockUncompressed {
		if d.blockLength&1 == 1 {
			br.pos++
		}
		br.reset()
	}

	d.blockType = int(br.readBits(3))
	hi := br.readBits(16)
	lo := br.readBits(8)
	d.blockLength = hi<<8 | lo
	d.blockRemaining = d.blockLength

	switch d.blockType {
	case blockAligned:
		for i := range d.alignedLens {
			d.alignedLens[i] = byte(br.readBits(3))
		}
		if err := d.alignedTree.build(d.alignedLens[:]); err != nil {
			return err
		}
		fallthrough
	case blockVerbatim:
		if err := d.readLengths(br, d.mainLens, 0, numChars); err != nil {
			return err
		}
		if err := d.readLengths(br, d.mainLens, numChars, d.mainElements); err != nil {
			return err
		}
		if err := d.mainTree.build(d.mainLens); err != nil {
			return err
		}
		if d.mainLens[0xE8] != 0 {
			d.intelStarted = true
		}
		if err := d.readLengths(br, d.lengthLens[:], 0, numSecondaryLengths); err != nil {
			return err
		}
		return d.lengthTree.build(d.lengthLens[:])
	case blockUncompressed:
		d.intelStarted = true
		br.alignRaw()
		d.r0 = br.readUint32LE()
		d.r1 = br.readUint32LE()
		d.r2 = br.readUint32LE()
		return nil
	default:
		return fmt.Errorf("%w: bad block type %d", ErrCorrupt, d.blockType)
	}
}

// readLengths reads delta-coded code lengths for lens[first:last] through
// a freshly transmitted pretree.
func (d *Decoder) readLengths(br *bitReader, lens []byte, first, last int) error {
	for i := range d.pretreeLens {
		d.pretreeLens[i] = byte(br.readBits(4))
	}
	if err := d.pretree.build(d.pretreeLens[:]); err != nil {
		return err
	}

	put := func(x int, v byte) error {
		if x >= last {
			return fmt.Errorf("%w: code length run overflows table", ErrCorrupt)
		}
		lens[x] = v
		return nil
	}

	for x := first; x < last; {
		z, err := d.pretree.decode(br)
		if err != nil {
			return err
		}
		switch z {
		case 17:
			n := int(br.readBits(4)) + 4
			for ; n > 0; n-- {
				if err := put(x, 0); err != nil {
					return err
				}
				x++
			}
		case 18:
			n := int(br.readBits(5)) + 20
			for ; n > 0; n-- {
				if err := put(x, 0); err != nil {
					return err
				}
				x++
			}
		case 19:
			n := int(br.readBits(1)) + 4
			sym, err := d.pretree.decode(br)
			if err != nil {
				return err
			}
			v := deltaLen(lens[x], sym)
			for ; n > 0; n-- {
				if err := put(x, v); err != nil {
					return err
				}
				x++
			}
		default:
			lens[x] = deltaLen(lens[x], z)
			x++
		}
	}
	return nil
}

func deltaLen(prev byte, z int) byte {
	v := int(prev) - z
	if v < 0 {
		v += 17
	}
	return byte(v)
}

// decodeMatches decodes run bytes of a verbatim or aligned block into the
// window and returns the remaining run, negative on overrun.
func (d *Decoder) decodeMatches(br *bitReader, run int64) (int64, error) {
	aligned := d.blockType == blockAligned
	for run > 0 {
		sym, err := d.mainTree.decode(br)
		if err != nil {
			return 0, err
		}
		if sym < numChars {
			d.window[d.windowPos] = byte(sym)
			d.windowPos++
			run--
			continue
		}

		sym -= numChars
		length := uint32(sym & numPrimaryLengths)
		if length == numPrimaryLengths {
			footer, err := d.lengthTree.decode(br)
			if err != nil {
				return 0, err
			}
			length += uint32(footer)
		}
		length += minMatch

		slot := sym >> 3
		var offset uint32
		switch {
		case slot > 2:
			extra := uint(extraBits[slot])
			offset = positionBase[slot] - 2
			if aligned {
				switch {
				case extra > 3:
					offset += br.readBits(extra-3) << 3
					a, err := d.alignedTree.decode(br)
					if err != nil {
						return 0, err
					}
					offset += uint32(a)
				case extra == 3:
					a, err := d.alignedTree.decode(br)
					if err != nil {
						return 0, err
					}
					offset += uint32(a)
				case extra > 0:
					offset += br.readBits(extra)
				default:
					offset = 1
				}
			} else {
				offset += br.readBits(extra)
			}
			d.r2, d.r1, d.r0 = d.r1, d.r0, offset
		case slot == 0:
			offset = d.r0
		case slot == 1:
			offset = d.r1
			d.r1, d.r0 = d.r0, offset
		default:
			offset = d.r2
			d.r2, d.r0 = d.r0, offset
		}

		if err := d.copyMatch(offset, length); err != nil {
			return 0, err
		}
		run -= int64(length)
	}
	return run, nil
}

func (d *Decoder) copyMatch(offset, length uint32) error {
	if d.windowPos+length > d.windowSize {
		return fmt.Errorf("%w: match runs past window end", ErrCorrupt)
	}
	if offset == 0 || offset > d.windowSize {
		return fmt.Errorf("%w: match offset %d", ErrCorrupt, offset)
	}

	dst := d.windowPos
	if offset > d.windowPos {
		// Source wraps around to the end of the window.
		j := offset - d.windowPos
		src := d.windowSize - j
		if j < length {
			for k := uint32(0); k < j; k++ {
				d.window[dst] = d.window[src]
				dst++
				src++
			}
			length -= j
			src = 0
		}
		for ; length > 0; length-- {
			d.window[dst] = d.window[src]
			dst++
			src++
		}
	} else {
		src := dst - offset
		for ; length > 0; length-- {
			d.window[dst] = d.window[src]
			dst++
			src++
		}
	}
	d.windowPos = dst
	return nil
}

// translateE8 undoes the x86 CALL translation on a decoded frame.
func (d *Decoder) translateE8(out []byte) {
	size := int32(len(out))
	defer func() { d.intelCurPos += size }()

	if !d.intelStarted || d.intelFileSize == 0 || size <= 10 || d.frames >= 32768 {
		return
	}

	cur := d.intelCurPos
	end := len(out) - 10
	for i := 0; i < end; {
		if out[i] != 0xE8 {
			i++
			cur++
			continue
		}
		i++
		abs := int32(uint32(out[i]) | uint32(out[i+1])<<8 | uint32(out[i+2])<<16 | uint32(out[i+3])<<24)
		if abs >= -cur && abs < d.intelFileSize {
			rel := abs + d.intelFileSize
			if abs >= 0 {
				rel = abs - cur
			}
			out[i] = byte(rel)
			out[i+1] = byte(rel >> 8)
			out[i+2] = byte(rel >> 16)
			out[i+3] = byte(rel >> 24)
		}
		i += 4
		cur += 5
	}
}
