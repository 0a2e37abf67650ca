package domain

import (
	"encoding/json"
	"fmt"
)

// Color is a bottle colour as encoded by the contract enum.
type Color uint8

const (
	Red Color = iota
	Blue
	Green
	Yellow
	Purple
)

var colorNames = [...]string{"Red", "Blue", "Green", "Yellow", "Purple"}

// DecodeColor maps a raw contract code to a Color. Unknown codes decode to Red.
func DecodeColor(code uint8) Color {
	if int(code) >= len(colorNames) {
		return Red
	}
	return Color(code)
}

// DecodeColors decodes a whole bottle row.
func DecodeColors(codes []uint8) []Color {
	out := make([]Color, len(codes))
	for i, c := range codes {
		out[i] = DecodeColor(c)
	}
	return out
}

// EncodeColors is the inverse of DecodeColors, used for submitResult.
func EncodeColors(colors []Color) []uint8 {
	out := make([]uint8, len(colors))
	for i, c := range colors {
		out[i] = uint8(c)
	}
	return out
}

func (c Color) String() string {
	if int(c) >= len(colorNames) {
		return fmt.Sprintf("Color(%d)", uint8(c))
	}
	return colorNames[c]
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range colorNames {
		if n == name {
			*c = Color(i)
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", name)
}
