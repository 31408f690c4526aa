package notes

import "slices"

// Palette is the set of color labels offered by the editor, in display order.
// The store itself accepts any string; an empty color means no label.
var Palette = []PaletteColor{
	{Name: "red", Hex: "#ef4444"},
	{Name: "orange", Hex: "#f97316"},
	{Name: "yellow", Hex: "#eab308"},
	{Name: "green", Hex: "#22c55e"},
	{Name: "cyan", Hex: "#06b6d4"},
	{Name: "blue", Hex: "#3b82f6"},
	{Name: "violet", Hex: "#8b5cf6"},
	{Name: "pink", Hex: "#ec4899"},
	{Name: "gray", Hex: "#6b7280"},
	{Name: "black", Hex: "#000000"},
}

// PaletteColor is a named swatch.
type PaletteColor struct {
	Name string
	Hex  string
}

// IsPaletteColor reports whether color is empty or one of the palette swatches.
func IsPaletteColor(color string) bool {
	if color == "" {
		return true
	}
	return slices.ContainsFunc(Palette, func(c PaletteColor) bool {
		return c.Hex == color
	})
}
