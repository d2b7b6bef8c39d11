package rsc5

import "fmt"

// Block is a decodable node of the resource graph. Read decodes the fields
// at the cursor in declaration order.
type Block interface {
	Read(r *Reader)
}

// blockPtr is satisfied by *T when *T is a Block.
type blockPtr[T any] interface {
	*T
	Block
}

func isAbsent(pos uint32) bool {
	return pos == 0 || pos == NullPointer
}

// readBlock returns the block at pos, decoding it on first use. The block is
// registered before its fields are read so self references resolve to the
// instance under construction. same reports whether a cached block has the
// wanted type; a cached block of another type is replaced.
func (r *Reader) readBlock(pos uint32, create func(*Reader) Block, same func(Block) bool) Block {
	if isAbsent(pos) {
		return nil
	}
	if b, ok := r.pool[pos]; ok && same(b) {
		return b
	}
	if _, err := r.Resolve(pos); err != nil {
		r.ctx.Warn(err)
		return nil
	}

	var b Block
	err := r.deref(pos, func() {
		b = create(r)
		if r.err != nil {
			return
		}
		r.pos = pos
		r.pool[pos] = b
		b.Read(r)
	})
	if err != nil {
		if b != nil && r.pool[pos] == b {
			delete(r.pool, pos)
		}
		r.ctx.Warn(fmt.Errorf("%T at %08X: %w", b, pos, err))
		return nil
	}
	return b
}

// ReadBlock returns the block of type T at pos, or nil when pos is absent
// or cannot be decoded.
func ReadBlock[T any, P blockPtr[T]](r *Reader, pos uint32) *T {
	b := r.readBlock(pos,
		func(*Reader) Block { return P(new(T)) },
		func(b Block) bool { _, ok := b.(P); return ok },
	)
	if b == nil {
		return nil
	}
	return (*T)(b.(P))
}

// ReadRoot decodes the block of type T at the start of the virtual arena.
// Unlike nested blocks, a root that cannot be decoded is an error.
func ReadRoot[T any, P blockPtr[T]](r *Reader) (*T, error) {
	if _, err := r.Resolve(VirtualBase); err != nil || len(r.data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidResource)
	}
	root := P(new(T))
	r.pool[VirtualBase] = root
	if err := r.deref(VirtualBase, func() { root.Read(r) }); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResource, err)
	}
	return (*T)(root), nil
}

// Ptr is a single optional reference.
type Ptr[T any] struct {
	Position uint32
	Item     *T
}

// ReadPtr reads a pointer and decodes its target.
func ReadPtr[T any, P blockPtr[T]](r *Reader) Ptr[T] {
	pos := r.ReadUint32()
	return Ptr[T]{Position: pos, Item: ReadBlock[T, P](r, pos)}
}

// PtrArr is a counted array of pointers, each resolved on its own.
type PtrArr[T any] struct {
	Position uint32
	Count    uint16
	Capacity uint16
	Pointers []uint32
	Items    []T
}

func readPtrArr[T any](r *Reader, resolve func(uint32) T) PtrArr[T] {
	a := PtrArr[T]{
		Position: r.ReadUint32(),
		Count:    r.ReadUint16(),
		Capacity: r.ReadUint16(),
	}
	a.Pointers = ReadArray(r, a.Position, int(a.Count), 4, (*Reader).ReadUint32)
	if a.Pointers == nil {
		return a
	}
	a.Items = make([]T, len(a.Pointers))
	for i, p := range a.Pointers {
		a.Items[i] = resolve(p)
	}
	return a
}

// ReadPtrArr reads a pointer array of blocks of type T.
func ReadPtrArr[T any, P blockPtr[T]](r *Reader) PtrArr[*T] {
	return readPtrArr(r, func(pos uint32) *T { return ReadBlock[T, P](r, pos) })
}

// Arr is a counted array of inline values.
type Arr[T any] struct {
	Position uint32
	Count    uint16
	Capacity uint16
	Items    []T
}

// ReadArr reads an array header and its elements, size bytes each.
func ReadArr[T any](r *Reader, size int, read func(*Reader) T) Arr[T] {
	a := Arr[T]{
		Position: r.ReadUint32(),
		Count:    r.ReadUint16(),
		Capacity: r.ReadUint16(),
	}
	a.Items = ReadArray(r, a.Position, int(a.Count), size, read)
	return a
}

// RawArr is a pointer to elements whose count is stored elsewhere in the
// owning block. Items are read with ReadItems once the count is known.
type RawArr[T any] struct {
	Position uint32
	Items    []T
}

// ReadRawArrPtr reads the pointer of a raw array.
func ReadRawArrPtr[T any](r *Reader) RawArr[T] {
	return RawArr[T]{Position: r.ReadUint32()}
}

// ReadItems reads count elements of size bytes each.
func (a *RawArr[T]) ReadItems(r *Reader, count, size int, read func(*Reader) T) {
	a.Items = ReadArray(r, a.Position, count, size, read)
}

// Str is a pointer to a null-terminated string.
type Str struct {
	Position uint32
	Value    string
}

// ReadStr reads a string pointer and the string it points to.
func ReadStr(r *Reader) Str {
	s := Str{Position: r.ReadUint32()}
	if isAbsent(s.Position) {
		return s
	}
	if err := r.deref(s.Position, func() { s.Value = r.ReadCString() }); err != nil {
		r.ctx.Warn(err)
	}
	return s
}

func (s Str) String() string { return s.Value }

// BlockMap is the allocation map header every file block points to.
type BlockMap struct {
	Unknown uint32
}

func (b *BlockMap) Read(r *Reader) {
	b.Unknown = r.ReadUint32()
}
