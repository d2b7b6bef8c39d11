package rsc5

import (
	"encoding/binary"
	"fmt"
	"path"
	"strings"

	"github.com/Faultbox/rpfkit/pkg/rpf3"
)

// Xshp root identifiers, the first word of the payload.
const (
	XshpCity        uint32 = 0x10B75C00
	XshpBitmapVinyl uint32 = 0x40CC5600
	XshpBitmapTire  uint32 = 0x9CC65600
	XshpUnknown     uint32 = 0x3CAF5C00
)

// Load decodes a payload whose root block is T.
func Load[T any, P blockPtr[T]](data []byte, virtualSize, physicalSize int) (*T, *Context, error) {
	r := NewReader(data, virtualSize, physicalSize)
	root, err := ReadRoot[T, P](r)
	if err != nil {
		return nil, r.Context(), err
	}
	return root, r.Context(), nil
}

// File is a decoded resource file.
type File struct {
	Name    string
	Root    Block
	Context *Context
}

// Textures returns every texture the decode collected.
func (f *File) Textures() []*Texture {
	if f.Context == nil {
		return nil
	}
	return f.Context.Textures
}

// Warnings returns the fields that were dropped during the decode.
func (f *File) Warnings() []error {
	if f.Context == nil {
		return nil
	}
	return f.Context.Warnings
}

// Drawables returns the drawables reachable from the root.
func (f *File) Drawables() []Drawer {
	var out []Drawer
	add := func(d Drawer, ok bool) {
		if ok {
			out = append(out, d)
		}
	}
	switch root := f.Root.(type) {
	case *DrawableBase:
		add(root, root != nil)
	case *AmbientDrawablePed:
		add(root.Drawable.Item, root.Drawable.Item != nil)
	case *City:
		add(root.Drawable.Item, root.Drawable.Item != nil)
	case *Fragment:
		add(root.Drawable.Item, root.Drawable.Item != nil)
	}
	return out
}

// Drawer is implemented by every drawable variant.
type Drawer interface {
	Models() []*Model
	Geometries() []*Geometry
}

var (
	_ Drawer = (*DrawableBase)(nil)
	_ Drawer = (*Drawable)(nil)
	_ Drawer = (*SimpleDrawableBase)(nil)
)

// Decode decodes the payload of a resource named name, choosing the root
// type from its extension.
func Decode(name string, data []byte, virtualSize, physicalSize int) (*File, error) {
	r := NewReader(data, virtualSize, physicalSize)
	f := &File{Name: name, Context: r.Context()}

	var err error
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".xtd":
		f.Root, err = decodeRoot[TextureDictionary](r)
	case ".xshp":
		f.Root, err = decodeXshp(r, data)
	case ".xapb":
		f.Root, err = decodeRoot[AmbientDrawablePed](r)
	case ".xft":
		f.Root, err = decodeRoot[Fragment](r)
	case ".drawable":
		f.Root, err = decodeRoot[DrawableBase](r)
	case ".xbd":
		f.Root, err = decodeRoot[BoundsDictionary](r)
	case ".xbn":
		f.Root, err = decodeRoot[BoundsFile](r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// decodeRoot decodes the root as T and returns it as a Block.
func decodeRoot[T any, P blockPtr[T]](r *Reader) (Block, error) {
	b, err := ReadRoot[T, P](r)
	if err != nil {
		return nil, err
	}
	return P(b), nil
}

func decodeXshp(r *Reader, data []byte) (Block, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidResource)
	}
	switch ident := binary.BigEndian.Uint32(data); ident {
	case XshpCity:
		return decodeRoot[City](r)
	case XshpBitmapVinyl, XshpBitmapTire:
		return decodeRoot[Bitmap](r)
	default:
		return nil, fmt.Errorf("%w: xshp ident %08X", ErrUnsupported, ident)
	}
}

// LoadEntry extracts a resource entry from its archive and decodes it.
func LoadEntry(a *rpf3.Archive, e *rpf3.FileEntry) (*File, error) {
	if !e.IsResource {
		return nil, fmt.Errorf("%w: %s is not a resource", ErrUnsupported, e.Path)
	}
	data, err := a.ExtractFile(e)
	if err != nil {
		return nil, err
	}
	return Decode(e.Name, data, e.VirtualSize(), e.PhysicalSize())
}
