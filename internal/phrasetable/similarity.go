package phrasetable

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// EditDistance computes the Levenshtein distance between two strings,
// counted in runes.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use single-row DP to save memory.
	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur := make([]int, lb+1)
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev = cur
	}
	return prev[lb]
}

// Similarity maps edit distance onto [0, 1]: identical strings score 1 and
// strings with nothing in common score 0.
func Similarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	m := la
	if lb > m {
		m = lb
	}
	if m == 0 {
		return 1
	}
	return 1 - float64(EditDistance(a, b))/float64(m)
}

// Annotator appends orthographic similarity scores to phrase-table records.
type Annotator struct {
	minSim float64
}

// NewAnnotator creates an annotator with the given similarity floor.
// A zero floor selects the default of 0.3.
func NewAnnotator(minSim float64) *Annotator {
	if minSim == 0 {
		minSim = 0.3
	}
	return &Annotator{minSim: minSim}
}

// Annotate appends two similarity scores to the record's score column: the
// product over source tokens of the best match on the target side, then
// the product over target tokens of the best match on the source side.
func (a *Annotator) Annotate(rec *Record) error {
	if len(rec.Columns) < 3 {
		return fmt.Errorf("phrase table record has %d columns, want at least 3", len(rec.Columns))
	}
	src := strings.Fields(rec.Source())
	trg := strings.Fields(rec.Target())

	rec.AppendScore(formatScore(a.product(src, trg)))
	rec.AppendScore(formatScore(a.product(trg, src)))
	return nil
}

// product multiplies, over every token on the from side, the best
// similarity against the to side, floored at the minimum similarity.
func (a *Annotator) product(from, to []string) float64 {
	score := 1.0
	for _, t1 := range from {
		best := a.minSim
		for _, t2 := range to {
			if sim := Similarity(t1, t2); sim > best {
				best = sim
			}
		}
		score *= best
	}
	return score
}

// AnnotateStream copies phrase-table lines from r to w, appending the two
// similarity scores to each line.
func (a *Annotator) AnnotateStream(r io.Reader, w io.Writer) error {
	pr := NewReader(r)
	bw := bufio.NewWriter(w)
	lineNo := 0
	for pr.Scan() {
		lineNo++
		rec := pr.Record()
		if err := a.Annotate(&rec); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, err := bw.WriteString(rec.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := pr.Err(); err != nil {
		return err
	}
	return bw.Flush()
}
