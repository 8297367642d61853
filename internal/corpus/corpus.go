// Package corpus holds the native text hygiene applied to monolingual
// training data: length filtering, deduplication, seeded shuffling and
// dev/train splitting, plus n-gram vocabulary extraction.
package corpus

import (
	"bufio"
	"math/rand"
	"os"
	"strings"
)

// ReadLines loads a text file into memory, one element per line.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteLines writes lines to path, one per line with a trailing newline.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, line := range lines {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FilterByLength keeps lines whose whitespace token count is within
// [min, max], both inclusive.
func FilterByLength(lines []string, min, max int) []string {
	out := lines[:0:0]
	for _, line := range lines {
		n := len(strings.Fields(line))
		if min <= n && n <= max {
			out = append(out, line)
		}
	}
	return out
}

// Dedupe drops repeated lines, keeping the first occurrence.
func Dedupe(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := lines[:0:0]
	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

// Shuffle permutes lines in place, deterministically for a given seed.
func Shuffle(lines []string, seed int64) {
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})
}

// Split cuts the first n lines off as the dev set and returns the rest
// as training data. A corpus shorter than n becomes dev entirely.
func Split(lines []string, n int) (dev, train []string) {
	if n > len(lines) {
		n = len(lines)
	}
	return lines[:n], lines[n:]
}
