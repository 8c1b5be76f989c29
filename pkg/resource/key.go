// Package resource defines resource identity (Key, Category) and the
// overflow-checked Amount arithmetic every storage operation builds on.
package resource

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Category classifies a resource. Values are bit flags so that restrictions
// such as CategoryAny can be expressed as masks.
type Category uint8

const (
	CategoryNone   Category = 0b000
	CategoryEnergy Category = 0b001
	CategoryItem   Category = 0b010
	CategoryFluid  Category = 0b100
	CategoryAny    Category = 0b111
)

// Accepts reports whether a restriction c admits resources of category other.
// CategoryNone admits nothing.
func (c Category) Accepts(other Category) bool {
	return c != CategoryNone && other != CategoryNone && c&other == other
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNone, CategoryEnergy, CategoryItem, CategoryFluid, CategoryAny:
		return true
	default:
		return false
	}
}

// Concrete reports whether c names exactly one resource category.
func (c Category) Concrete() bool {
	return c == CategoryEnergy || c == CategoryItem || c == CategoryFluid
}

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryEnergy:
		return "energy"
	case CategoryItem:
		return "item"
	case CategoryFluid:
		return "fluid"
	case CategoryAny:
		return "any"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return CategoryNone, nil
	case "energy":
		return CategoryEnergy, nil
	case "item":
		return CategoryItem, nil
	case "fluid":
		return CategoryFluid, nil
	case "any":
		return CategoryAny, nil
	default:
		return CategoryNone, fmt.Errorf("resource: unknown category %q", s)
	}
}

// EnergyID is the base type id of the single energy key.
const EnergyID = "energy"

// Key is the immutable identity of a resource: category, base type id and an
// opaque variant payload (components/NBT-equivalent data). Keys are
// comparable; two keys are equal iff all three parts are equal. The zero Key
// is blank and identifies no resource.
type Key struct {
	category Category
	id       string
	variant  string
}

// NewKey builds a key. The variant payload is copied.
func NewKey(category Category, id string, variant []byte) (Key, error) {
	if !category.Concrete() {
		return Key{}, fmt.Errorf("resource: key category must be energy, item or fluid, got %s", category)
	}
	if id == "" {
		return Key{}, fmt.Errorf("resource: key id required")
	}
	if category == CategoryEnergy && (id != EnergyID || len(variant) != 0) {
		return Key{}, fmt.Errorf("resource: energy has a single key without variant")
	}
	return Key{category: category, id: id, variant: string(variant)}, nil
}

// Energy returns the single energy key.
func Energy() Key { return Key{category: CategoryEnergy, id: EnergyID} }

// Item returns an item key without variant data.
func Item(id string) Key { return Key{category: CategoryItem, id: id} }

// Fluid returns a fluid key without variant data.
func Fluid(id string) Key { return Key{category: CategoryFluid, id: id} }

// WithVariant returns a copy of k carrying the given variant payload. Energy
// keys have no variants and are returned unchanged.
func (k Key) WithVariant(variant []byte) Key {
	if k.category == CategoryEnergy || k.IsBlank() {
		return k
	}
	k.variant = string(variant)
	return k
}

// Category returns the key's category.
func (k Key) Category() Category { return k.category }

// ID returns the base type id.
func (k Key) ID() string { return k.id }

// Variant returns a copy of the variant payload (nil when absent).
func (k Key) Variant() []byte {
	if k.variant == "" {
		return nil
	}
	return []byte(k.variant)
}

// HasVariant reports whether the key carries variant data.
func (k Key) HasVariant() bool { return k.variant != "" }

// IsBlank reports whether k is the zero key.
func (k Key) IsBlank() bool { return k == Key{} }

// Base returns k stripped of its variant.
func (k Key) Base() Key {
	k.variant = ""
	return k
}

// Equal reports whether a and b identify the same resource.
func Equal(a, b Key) bool { return a == b }

// Hash returns a stable 64-bit hash of the key consistent with Equal.
func (k Key) Hash() uint64 {
	d := xxhash.New()
	var hdr [9]byte
	hdr[0] = byte(k.category)
	binary.BigEndian.PutUint64(hdr[1:], uint64(len(k.id)))
	_, _ = d.Write(hdr[:])
	_, _ = d.WriteString(k.id)
	_, _ = d.WriteString(k.variant)
	return d.Sum64()
}

func (k Key) String() string {
	if k.IsBlank() {
		return "<blank>"
	}
	if k.variant == "" {
		return k.category.String() + ":" + k.id
	}
	return fmt.Sprintf("%s:%s{%x}", k.category, k.id, k.variant)
}

// MarshalText encodes the key as category:id{hex variant}. The braces are
// always written, so ids containing braces parse back unchanged.
func (k Key) MarshalText() ([]byte, error) {
	if k.IsBlank() {
		return []byte{}, nil
	}
	return fmt.Appendf(nil, "%s:%s{%x}", k.category, k.id, k.variant), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey parses the form produced by MarshalText, and the Key.String form
// of keys whose id has no braces. An empty string is the blank key.
func ParseKey(s string) (Key, error) {
	if s == "" || s == "<blank>" {
		return Key{}, nil
	}
	cat, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("resource: malformed key %q", s)
	}
	category, err := ParseCategory(cat)
	if err != nil {
		return Key{}, err
	}
	var variant []byte
	if strings.HasSuffix(rest, "}") {
		open := strings.LastIndexByte(rest, '{')
		if open < 0 {
			return Key{}, fmt.Errorf("resource: malformed key %q", s)
		}
		variant, err = hex.DecodeString(rest[open+1 : len(rest)-1])
		if err != nil {
			return Key{}, fmt.Errorf("resource: malformed variant in %q: %w", s, err)
		}
		rest = rest[:open]
	}
	return NewKey(category, rest, variant)
}
