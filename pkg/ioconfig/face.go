// Package ioconfig routes external transfers through a machine's six logical
// faces. Each face has a mode, a category restriction and an optional key
// filter.
package ioconfig

import (
	"fmt"
	"strings"
)

// Face is a side of a machine relative to the direction it faces.
type Face uint8

const (
	Front Face = iota
	Right
	Back
	Left
	Top
	Bottom
)

// FaceCount is the number of faces.
const FaceCount = 6

// Faces lists every face in id order.
var Faces = [FaceCount]Face{Front, Right, Back, Left, Top, Bottom}

var faceNames = [FaceCount]string{"front", "right", "back", "left", "top", "bottom"}

// Valid reports whether f names a face.
func (f Face) Valid() bool { return f < FaceCount }

// IsSide reports whether f is one of the four horizontal faces.
func (f Face) IsSide() bool { return f <= Left }

// Opposite returns the face on the other side of the machine.
func (f Face) Opposite() Face {
	switch f {
	case Front:
		return Back
	case Back:
		return Front
	case Right:
		return Left
	case Left:
		return Right
	case Top:
		return Bottom
	default:
		return Top
	}
}

func (f Face) String() string {
	if !f.Valid() {
		return fmt.Sprintf("face(%d)", uint8(f))
	}
	return faceNames[f]
}

// ParseFace is the inverse of Face.String.
func ParseFace(s string) (Face, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range faceNames {
		if n == name {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("ioconfig: unknown face %q", s)
}

// Direction is an absolute world direction.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
	Up
	Down
)

var directionNames = [...]string{"north", "east", "south", "west", "up", "down"}

func (d Direction) String() string {
	if int(d) >= len(directionNames) {
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// Horizontal reports whether d lies in the horizontal plane.
func (d Direction) Horizontal() bool { return d <= West }

// FaceFor maps the world direction target onto a face of a machine whose
// front points towards facing. facing must be horizontal.
func FaceFor(facing, target Direction) (Face, error) {
	if !facing.Horizontal() {
		return 0, fmt.Errorf("ioconfig: machine cannot face %s", facing)
	}
	switch target {
	case Up:
		return Top, nil
	case Down:
		return Bottom, nil
	case North, East, South, West:
		// Horizontal directions and side faces are both numbered clockwise,
		// so the face is the clockwise turn count from facing to target.
		turns := (int(target) - int(facing) + 4) % 4
		return [4]Face{Front, Right, Back, Left}[turns], nil
	default:
		return 0, fmt.Errorf("ioconfig: unknown direction %d", target)
	}
}

// DirectionOf is the inverse of FaceFor.
func DirectionOf(facing Direction, face Face) (Direction, error) {
	if !facing.Horizontal() {
		return 0, fmt.Errorf("ioconfig: machine cannot face %s", facing)
	}
	switch face {
	case Top:
		return Up, nil
	case Bottom:
		return Down, nil
	case Front, Right, Back, Left:
		return Direction((int(facing) + int(face)) % 4), nil
	default:
		return 0, fmt.Errorf("ioconfig: unknown face %d", face)
	}
}
