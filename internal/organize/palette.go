package organize

// palette is the fixed set of pastel accent colors. A category's color is
// positional — derived from its ordinal index, never stored.
var palette = []string{"blue", "green", "yellow", "purple", "pink", "indigo"}

// ColorFor returns the palette color for ordinal index i. The unorganized
// bucket conventionally takes index 0 and categories start at 1.
func ColorFor(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}
