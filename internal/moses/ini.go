package moses

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	weightSection  = "[weight]"
	featureSection = "[feature]"
)

// Weights holds the [weight] section of a decoder configuration in file
// order. Values stay strings end to end so that rewriting a configuration
// never reformats a number.
type Weights struct {
	names  []string
	values map[string][]string
}

// NewWeights creates an empty weight set.
func NewWeights() *Weights {
	return &Weights{values: make(map[string][]string)}
}

// Set stores the values for a feature, keeping first-set order.
func (w *Weights) Set(name string, values []string) {
	if _, ok := w.values[name]; !ok {
		w.names = append(w.names, name)
	}
	w.values[name] = append([]string(nil), values...)
}

// Values returns the stored values for a feature, or nil when absent.
func (w *Weights) Values(name string) []string {
	return w.values[name]
}

// Names returns the feature names in file order.
func (w *Weights) Names() []string {
	return append([]string(nil), w.names...)
}

// SortedNames returns the feature names alphabetically.
func (w *Weights) SortedNames() []string {
	out := append([]string(nil), w.names...)
	sort.Strings(out)
	return out
}

// Arity returns the number of components per feature.
func (w *Weights) Arity() map[string]int {
	out := make(map[string]int, len(w.values))
	for name, vals := range w.values {
		out[name] = len(vals)
	}
	return out
}

// Equal reports whether both weight sets hold the same features with the
// same value strings.
func (w *Weights) Equal(other *Weights) bool {
	if other == nil || len(w.values) != len(other.values) {
		return false
	}
	for name, vals := range w.values {
		ovals, ok := other.values[name]
		if !ok || len(ovals) != len(vals) {
			return false
		}
		for i := range vals {
			if vals[i] != ovals[i] {
				return false
			}
		}
	}
	return true
}

// ExtractWeights parses the [weight] section of a decoder configuration.
func ExtractWeights(path string) (*Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := NewWeights()
	sc := bufio.NewScanner(f)
	in := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == weightSection:
			in = true
		case strings.HasPrefix(line, "["):
			in = false
		case in && line != "":
			fields := strings.Fields(line)
			w.Set(strings.TrimSuffix(fields[0], "="), fields[1:])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return w, nil
}

// ReplaceWeights copies the configuration at input to output, substituting
// the values in w for each line of the [weight] section. All lines are
// written whitespace-trimmed.
func ReplaceWeights(input, output string, w *Weights) error {
	fin, err := os.Open(input)
	if err != nil {
		return err
	}
	defer fin.Close()

	fout, err := os.Create(output)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(fout)

	sc := bufio.NewScanner(fin)
	in := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if in && line != "" && !strings.HasPrefix(line, "[") {
			name := strings.TrimSuffix(strings.Fields(line)[0], "=")
			vals := w.Values(name)
			if vals == nil {
				fout.Close()
				return fmt.Errorf("no weights for feature %q in %s", name, input)
			}
			fmt.Fprintf(bw, "%s= %s\n", name, strings.Join(vals, " "))
			continue
		}
		fmt.Fprintln(bw, line)
		if line == weightSection {
			in = true
		} else if strings.HasPrefix(line, "[") {
			in = false
		}
	}
	if err := sc.Err(); err != nil {
		fout.Close()
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	if err := bw.Flush(); err != nil {
		fout.Close()
		return err
	}
	return fout.Close()
}

// FeaturePath returns the path attribute of the named feature in the
// [feature] section of a decoder configuration.
func FeaturePath(config, feature string) (string, error) {
	f, err := os.Open(config)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	in := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == featureSection:
			in = true
		case strings.HasPrefix(line, "["):
			in = false
		case in && line != "":
			attrs := make(map[string]string)
			for _, col := range strings.Fields(line) {
				if eq := strings.IndexByte(col, '='); eq > 0 {
					attrs[col[:eq]] = col[eq+1:]
				}
			}
			if attrs["name"] == feature && attrs["path"] != "" {
				return attrs["path"], nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", config, err)
	}
	return "", fmt.Errorf("feature %q not found in %s", feature, config)
}

// ConfigsEqual reports whether two configurations carry identical weight
// values.
func ConfigsEqual(a, b string) (bool, error) {
	wa, err := ExtractWeights(a)
	if err != nil {
		return false, err
	}
	wb, err := ExtractWeights(b)
	if err != nil {
		return false, err
	}
	return wa.Equal(wb), nil
}
