package ioconfig

import (
	"fmt"

	"machinecore/pkg/resource"
)

// FaceConfig is the routing policy for one face.
type FaceConfig struct {
	Mode     Mode
	Category resource.Category
	Filter   *resource.Filter
}

// Active reports whether the face takes part in any transfer.
func (fc FaceConfig) Active() bool {
	return fc.Mode != Disabled && fc.Category != resource.CategoryNone
}

func (fc FaceConfig) clone() FaceConfig {
	fc.Filter = fc.Filter.Clone()
	return fc
}

// Config holds the per-face routing of a machine. The zero value has every
// face disabled.
//
// Config is read on every external transfer and written only by
// configuration actions, which the host serialises against ticks.
type Config struct {
	faces    [FaceCount]FaceConfig
	revision uint64
}

// New returns a configuration with every face disabled.
func New() *Config { return &Config{} }

// CanAccept reports whether face permits key to flow in the given direction.
func (c *Config) CanAccept(face Face, key resource.Key, flow Flow) bool {
	if !face.Valid() || key.IsBlank() {
		return false
	}
	fc := c.faces[face]
	if !fc.Mode.Allows(flow) {
		return false
	}
	if !fc.Category.Accepts(key.Category()) {
		return false
	}
	return fc.Filter.Match(key)
}

// Configure sets a face's mode and filter. A face that was disabled, or had
// no category restriction, opens to every category.
func (c *Config) Configure(face Face, mode Mode, filter *resource.Filter) error {
	category := resource.CategoryAny
	if face.Valid() && c.faces[face].Category != resource.CategoryNone {
		category = c.faces[face].Category
	}
	if mode == Disabled {
		category = resource.CategoryNone
	}
	return c.ConfigureFace(face, FaceConfig{Mode: mode, Category: category, Filter: filter})
}

// ConfigureFace replaces the whole policy of a face.
func (c *Config) ConfigureFace(face Face, fc FaceConfig) error {
	if !face.Valid() {
		return fmt.Errorf("ioconfig: invalid face %d", face)
	}
	if !fc.Mode.Valid() {
		return fmt.Errorf("ioconfig: invalid mode %d for %s", fc.Mode, face)
	}
	if !fc.Category.Valid() {
		return fmt.Errorf("ioconfig: invalid category %d for %s", fc.Category, face)
	}
	c.faces[face] = fc.clone()
	c.revision++
	return nil
}

// Get returns a copy of a face's policy.
func (c *Config) Get(face Face) FaceConfig {
	if !face.Valid() {
		return FaceConfig{}
	}
	return c.faces[face].clone()
}

// Reset disables every face.
func (c *Config) Reset() {
	c.faces = [FaceCount]FaceConfig{}
	c.revision++
}

// Revision changes on every configuration write.
func (c *Config) Revision() uint64 { return c.revision }

// FacesFor lists the faces that permit key in the given direction.
func (c *Config) FacesFor(key resource.Key, flow Flow) []Face {
	var out []Face
	for _, f := range Faces {
		if c.CanAccept(f, key, flow) {
			out = append(out, f)
		}
	}
	return out
}

// Snapshot copies every face's policy for display or persistence.
func (c *Config) Snapshot() [FaceCount]FaceConfig {
	var out [FaceCount]FaceConfig
	for i := range c.faces {
		out[i] = c.faces[i].clone()
	}
	return out
}
