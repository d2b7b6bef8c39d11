package rsc5

import (
	"encoding/binary"
	"math"

	rmath "github.com/Faultbox/rpfkit/pkg/math"
)

// Reader decodes one resource payload. It is not safe for concurrent use.
//
// Scalar reads advance the cursor even when they fail. The first failure is
// kept until the enclosing block finishes, at which point the block is
// dropped and the failure becomes a warning on the Context.
type Reader struct {
	data         []byte
	virtualSize  int
	physicalSize int

	pos  uint32
	err  error
	pool map[uint32]Block
	ctx  *Context
}

// NewReader returns a reader over data, the virtual arena of virtualSize
// bytes followed by the physical arena. The cursor starts at VirtualBase.
func NewReader(data []byte, virtualSize, physicalSize int) *Reader {
	return &Reader{
		data:         data,
		virtualSize:  virtualSize,
		physicalSize: physicalSize,
		pos:          VirtualBase,
		pool:         make(map[uint32]Block),
		ctx:          NewContext(),
	}
}

// VirtualSize returns the size of the virtual arena.
func (r *Reader) VirtualSize() int { return r.virtualSize }

// PhysicalSize returns the size of the physical arena.
func (r *Reader) PhysicalSize() int { return r.physicalSize }

// Context returns the decode context.
func (r *Reader) Context() *Context { return r.ctx }

// Position returns the cursor address.
func (r *Reader) Position() uint32 { return r.pos }

// Seek moves the cursor to pos.
func (r *Reader) Seek(pos uint32) { r.pos = pos }

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) { r.pos += uint32(n) }

// Err returns the first failure of the block being decoded.
func (r *Reader) Err() error { return r.err }

// Resolve maps a tagged address to an offset into the payload.
func (r *Reader) Resolve(pos uint32) (int, error) {
	var off int
	switch {
	case IsVirtual(pos):
		off = int(pos & 0x0FFFFFFF)
	case IsPhysical(pos):
		off = int(pos&0x1FFFFFFF) + r.virtualSize
	default:
		return 0, &PointerError{Pos: pos, Reason: "no arena tag"}
	}
	if off > len(r.data) {
		return 0, &PointerError{Pos: pos, Reason: "outside payload"}
	}
	return off, nil
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// bytes returns n bytes at the cursor and advances it. On failure the
// result is nil.
func (r *Reader) bytes(n int) []byte {
	pos := r.pos
	r.pos += uint32(n)
	if n < 0 {
		r.fail(&PointerError{Pos: pos, Reason: "negative length"})
		return nil
	}
	off, err := r.Resolve(pos)
	if err != nil {
		r.fail(err)
		return nil
	}
	if off+n > len(r.data) {
		r.fail(&PointerError{Pos: pos, Reason: "read past end of payload"})
		return nil
	}
	return r.data[off : off+n]
}

// remaining returns the bytes left after the cursor, or 0 when the cursor
// does not resolve.
func (r *Reader) remaining() int {
	off, err := r.Resolve(r.pos)
	if err != nil {
		return 0
	}
	return len(r.data) - off
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.bytes(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() uint8 {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

// ReadInt16 reads a big-endian int16.
func (r *Reader) ReadInt16() int16 { return int16(r.ReadUint16()) }

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	if b := r.bytes(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// ReadInt32 reads a big-endian int32.
func (r *Reader) ReadInt32() int32 { return int32(r.ReadUint32()) }

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	if b := r.bytes(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

// ReadFloat32 reads a big-endian float.
func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUint32())
}

// ReadRawVector4 reads four big-endian floats without axis conversion.
func (r *Reader) ReadRawVector4() rmath.Vec4 {
	return rmath.Vec4{X: r.ReadFloat32(), Y: r.ReadFloat32(), Z: r.ReadFloat32(), W: r.ReadFloat32()}
}

// ReadVector3 reads a source-order vector and returns it in (X,Y,Z) order.
func (r *Reader) ReadVector3() rmath.Vec3 {
	v := rmath.Vec3{X: r.ReadFloat32(), Y: r.ReadFloat32(), Z: r.ReadFloat32()}
	return v.ToZXY()
}

// ReadVector4 reads a source-order vector, clears a NaN W and returns it in
// (X,Y,Z,W) order.
func (r *Reader) ReadVector4() rmath.Vec4 {
	return r.ReadRawVector4().ClearNaNW().ToZXY()
}

// ReadMatrix reads a source-order 4x4 matrix.
func (r *Reader) ReadMatrix() rmath.Mat4 {
	var m rmath.Mat4
	for i := range m {
		m[i] = r.ReadFloat32()
	}
	return m.ClearNaNW().ToZXY()
}

// ReadBoundingBox4 reads a min and a max corner.
func (r *Reader) ReadBoundingBox4() rmath.BoundingBox4 {
	b := rmath.BoundingBox4{Min: r.ReadRawVector4(), Max: r.ReadRawVector4()}
	return b.ToZXY()
}

// ReadCString reads a null-terminated string.
func (r *Reader) ReadCString() string {
	off, err := r.Resolve(r.pos)
	if err != nil {
		r.fail(err)
		return ""
	}
	end := off
	for end < len(r.data) && r.data[end] != 0 {
		end++
	}
	if end == len(r.data) {
		r.fail(&PointerError{Pos: r.pos, Reason: "unterminated string"})
		return ""
	}
	r.pos += uint32(end - off + 1)
	return string(r.data[off:end])
}

// deref runs fn with the cursor at pos and a clear failure state, then
// restores both. It returns the failure fn left behind.
func (r *Reader) deref(pos uint32, fn func()) error {
	savedPos, savedErr := r.pos, r.err
	r.pos, r.err = pos, nil
	fn()
	err := r.err
	r.pos, r.err = savedPos, savedErr
	return err
}

// readSlice reads n elements of size bytes each at the cursor. A count that
// cannot fit the payload fails without allocating.
func readSlice[T any](r *Reader, n, size int, read func(*Reader) T) []T {
	if n == 0 {
		return nil
	}
	if n < 0 || n*size > r.remaining() {
		r.fail(&PointerError{Pos: r.pos, Reason: "array exceeds payload"})
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = read(r)
	}
	return out
}

// ReadArray reads n elements of size bytes each at pos without moving the
// cursor. A failed read is recorded as a warning and yields nil.
func ReadArray[T any](r *Reader, pos uint32, n, size int, read func(*Reader) T) []T {
	if n == 0 || isAbsent(pos) {
		return nil
	}
	var out []T
	if err := r.deref(pos, func() { out = readSlice(r, n, size, read) }); err != nil {
		r.ctx.Warn(err)
		return nil
	}
	return out
}
