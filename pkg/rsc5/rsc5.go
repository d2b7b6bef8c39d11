// Package rsc5 decodes RSC5 resources: a virtual arena followed by a physical
// arena, holding a graph of big-endian blocks linked by 32-bit pointers.
//
// A pointer is an address tagged with the base of the arena it points into.
// Every block is decoded at most once per Reader; two pointers holding the
// same address yield the same instance, which also terminates cycles such as
// the sibling and parent links between bones.
package rsc5

import (
	"errors"
	"fmt"
)

// Errors returned by the decoder.
var (
	ErrInvalidResource = errors.New("rsc5: invalid resource")
	ErrUnresolvedBlock = errors.New("rsc5: unresolved block")
	ErrUnsupported     = errors.New("rsc5: unsupported resource type")
)

const (
	// VirtualBase tags addresses in the virtual arena.
	VirtualBase uint32 = 0x50000000

	// PhysicalBase tags addresses in the physical arena.
	PhysicalBase uint32 = 0x60000000

	// NullPointer is the uninitialised-memory fill found in place of absent
	// pointers.
	NullPointer uint32 = 0xCDCDCDCD
)

// IsVirtual reports whether pos carries the virtual arena tag.
func IsVirtual(pos uint32) bool { return pos&VirtualBase == VirtualBase }

// IsPhysical reports whether pos carries the physical arena tag.
func IsPhysical(pos uint32) bool { return pos&PhysicalBase == PhysicalBase }

// PointerError reports a pointer that could not be followed. The field that
// held it decodes as absent.
type PointerError struct {
	Pos    uint32
	Reason string
}

func (e *PointerError) Error() string {
	return fmt.Sprintf("rsc5: pointer %08X: %s", e.Pos, e.Reason)
}

// Unwrap returns ErrUnresolvedBlock.
func (e *PointerError) Unwrap() error { return ErrUnresolvedBlock }

// Context collects what a decode produced besides the root block: the
// textures referenced by shaders and dictionaries, and the warnings for
// pointers that were dropped.
type Context struct {
	Textures []*Texture
	Warnings []error

	seen map[*Texture]bool
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{seen: make(map[*Texture]bool)}
}

// AddTexture records t once.
func (c *Context) AddTexture(t *Texture) {
	if t == nil || c.seen[t] {
		return
	}
	c.seen[t] = true
	c.Textures = append(c.Textures, t)
}

// Warn records a non-fatal decode problem.
func (c *Context) Warn(err error) {
	c.Warnings = append(c.Warnings, err)
}

// Texture returns the first collected texture named name.
func (c *Context) Texture(name string) *Texture {
	for _, t := range c.Textures {
		if t.Name == name {
			return t
		}
	}
	return nil
}
