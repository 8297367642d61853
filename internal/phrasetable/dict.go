package phrasetable

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DictOptions controls dictionary extraction from a phrase table.
type DictOptions struct {
	Feature        int  // index into the score column used for ranking
	Reverse        bool // emit target -> source pairs instead
	IncludePhrases bool // keep multiword entries
}

// ExtractDict writes tab-separated "source target score" lines for the
// phrase-table records in r. Multiword entries are dropped unless
// requested, and the score token is copied verbatim.
func ExtractDict(r io.Reader, w io.Writer, opts DictOptions) error {
	pr := NewReader(r)
	bw := bufio.NewWriter(w)
	lineNo := 0
	for pr.Scan() {
		lineNo++
		rec := pr.Record()
		if len(rec.Columns) < 3 {
			return fmt.Errorf("line %d: phrase table record has %d columns, want at least 3", lineNo, len(rec.Columns))
		}
		src, trg := rec.Source(), rec.Target()
		if opts.Reverse {
			src, trg = trg, src
		}
		if !opts.IncludePhrases && (strings.Contains(src, " ") || strings.Contains(trg, " ")) {
			continue
		}
		scores := rec.Scores()
		if opts.Feature < 0 || opts.Feature >= len(scores) {
			return fmt.Errorf("line %d: feature %d out of range for %d scores", lineNo, opts.Feature, len(scores))
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", src, trg, scores[opts.Feature]); err != nil {
			return err
		}
	}
	if err := pr.Err(); err != nil {
		return err
	}
	return bw.Flush()
}
