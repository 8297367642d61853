// Package phrasetable reads, writes, and post-processes Moses-format
// phrase tables.
package phrasetable

// FieldSeparator separates the columns of a phrase-table line.
const FieldSeparator = "|||"

// Entry is one scored phrase pair. The four scores follow the Moses
// convention: inverse phrase probability, inverse lexical weight, direct
// phrase probability, direct lexical weight.
type Entry struct {
	Source         string
	Target         string
	Inverse        float64
	InverseLexical float64
	Direct         float64
	DirectLexical  float64
}
