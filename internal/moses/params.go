package moses

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// componentSeparator joins a feature name with its component index in the
// optimizer's flat parameter namespace.
const componentSeparator = "___"

// WriteParams writes the optimizer's parameter specification: one line per
// weight component in sorted feature order, then the normalization
// directive.
func WriteParams(w io.Writer, weights *Weights) error {
	bw := bufio.NewWriter(w)
	for _, name := range weights.SortedNames() {
		for i, val := range weights.Values(name) {
			fmt.Fprintf(bw, "%s%s%d ||| %s Opt -Inf +Inf -1 +1\n", name, componentSeparator, i, val)
		}
	}
	fmt.Fprintln(bw, "normalization = LNorm 1 1")
	return bw.Flush()
}

// WriteDecoderConfig writes the current weight vector in the optimizer's
// decoder configuration format.
func WriteDecoderConfig(w io.Writer, weights *Weights) error {
	bw := bufio.NewWriter(w)
	for _, name := range weights.SortedNames() {
		for i, val := range weights.Values(name) {
			fmt.Fprintf(bw, "%s%s%d ||| %s\n", name, componentSeparator, i, val)
		}
	}
	return bw.Flush()
}

// ParseOptimizedParams reads a weight vector in the optimizer's format,
// accepting both "name___i value" and "name___i ||| value" lines.
// Components are collected per feature from index zero up to the first
// gap, and features come back in sorted name order.
func ParseOptimizedParams(r io.Reader) (*Weights, error) {
	byIndex := make(map[string]map[int]string)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed weight line %q", line)
		}
		value := fields[1]
		if value == "|||" {
			if len(fields) < 3 {
				return nil, fmt.Errorf("malformed weight line %q", line)
			}
			value = fields[2]
		}
		sep := strings.LastIndex(fields[0], componentSeparator)
		if sep < 0 {
			return nil, fmt.Errorf("weight name %q missing component index", fields[0])
		}
		name := fields[0][:sep]
		idx, err := strconv.Atoi(fields[0][sep+len(componentSeparator):])
		if err != nil {
			return nil, fmt.Errorf("weight name %q has a bad component index: %w", fields[0], err)
		}
		if byIndex[name] == nil {
			byIndex[name] = make(map[int]string)
		}
		byIndex[name][idx] = value
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(byIndex))
	for name := range byIndex {
		names = append(names, name)
	}
	sort.Strings(names)

	weights := NewWeights()
	for _, name := range names {
		var vals []string
		for i := 0; ; i++ {
			v, ok := byIndex[name][i]
			if !ok {
				break
			}
			vals = append(vals, v)
		}
		if len(vals) > 0 {
			weights.Set(name, vals)
		}
	}
	return weights, nil
}
