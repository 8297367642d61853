package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Separator joins the tokens of a multiword phrase inside embedding files.
// It is reserved: no corpus token may contain it.
const Separator = "&#32;"

// ErrMalformed reports an embedding file that does not follow the
// "<count> <dim>" header plus "<phrase> <v1> .. <vdim>" body format.
var ErrMalformed = errors.New("malformed embeddings")

// Store is an in-memory phrase embedding space: a phrase vocabulary with one
// row vector per phrase. Multiword phrases are stored with Separator between
// tokens, exactly as they appear on disk.
type Store struct {
	phrases []string
	index   map[string]int
	vectors *mat.Dense
	dim     int
}

// New builds a store from a phrase list and a row-major vector matrix. The
// matrix must have one row per phrase; it may be nil when phrases is empty.
func New(phrases []string, vectors *mat.Dense) (*Store, error) {
	dim := 0
	if vectors != nil {
		r, c := vectors.Dims()
		if r != len(phrases) {
			return nil, fmt.Errorf("%w: %d phrases for %d vectors", ErrMalformed, len(phrases), r)
		}
		dim = c
	} else if len(phrases) != 0 {
		return nil, fmt.Errorf("%w: %d phrases without vectors", ErrMalformed, len(phrases))
	}
	index := make(map[string]int, len(phrases))
	for i, p := range phrases {
		index[p] = i
	}
	return &Store{phrases: phrases, index: index, vectors: vectors, dim: dim}, nil
}

// Load reads the text embedding format. Any structural problem (bad header,
// missing rows, wrong vector width, unparsable value) is fatal and reported
// as a wrapped ErrMalformed.
func Load(r io.Reader) (*Store, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read embeddings: %w", err)
		}
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	header := strings.Fields(sc.Text())
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: header %q", ErrMalformed, sc.Text())
	}
	count, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header count %q", ErrMalformed, header[0])
	}
	dim, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("%w: header dim %q", ErrMalformed, header[1])
	}
	if count < 0 || dim < 0 || (count > 0 && dim == 0) {
		return nil, fmt.Errorf("%w: header %d x %d", ErrMalformed, count, dim)
	}

	phrases := make([]string, 0, count)
	data := make([]float64, 0, count*dim)
	for i := 0; i < count; i++ {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read embeddings: %w", err)
			}
			return nil, fmt.Errorf("%w: got %d of %d rows", ErrMalformed, i, count)
		}
		line := sc.Text()
		sp := strings.IndexByte(line, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("%w: row %d has no phrase", ErrMalformed, i)
		}
		vals := strings.Fields(line[sp+1:])
		if len(vals) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrMalformed, i, len(vals), dim)
		}
		for _, v := range vals {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d value %q", ErrMalformed, i, v)
			}
			data = append(data, f)
		}
		phrases = append(phrases, line[:sp])
	}

	var vectors *mat.Dense
	if count > 0 {
		vectors = mat.NewDense(count, dim, data)
	}
	return New(phrases, vectors)
}

// LoadFile reads an embedding file from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Count returns the number of phrases in the store.
func (s *Store) Count() int {
	return len(s.phrases)
}

// Dim returns the vector dimensionality.
func (s *Store) Dim() int {
	return s.dim
}

// Phrase returns the stored (separator-joined) form of row i.
func (s *Store) Phrase(i int) string {
	return s.phrases[i]
}

// Lookup returns the row index of a stored phrase form.
func (s *Store) Lookup(phrase string) (int, bool) {
	i, ok := s.index[phrase]
	return i, ok
}

// Vector returns the backing slice of row i. Mutating it mutates the store.
func (s *Store) Vector(i int) []float64 {
	return s.vectors.RawRowView(i)
}

// Matrix exposes the full vector matrix for batched products. It is nil for
// an empty store.
func (s *Store) Matrix() *mat.Dense {
	return s.vectors
}

// Unigrams returns the rows whose phrase is a single token.
func (s *Store) Unigrams() []int {
	var rows []int
	for i, p := range s.phrases {
		if !strings.Contains(p, Separator) {
			rows = append(rows, i)
		}
	}
	return rows
}

// SurfaceForm returns the phrase of row i with separators restored to spaces.
func (s *Store) SurfaceForm(i int) string {
	return SurfaceForm(s.phrases[i])
}

// Tokens returns the constituent tokens of row i.
func (s *Store) Tokens(i int) []string {
	return Tokens(s.phrases[i])
}

// Normalize scales every row to unit Euclidean length in place. Zero rows
// are left untouched (their norm is substituted by 1).
func (s *Store) Normalize() {
	for i := 0; i < s.Count(); i++ {
		row := s.vectors.RawRowView(i)
		norm := floats.Norm(row, 2)
		if norm == 0 {
			continue
		}
		floats.Scale(1/norm, row)
	}
}

// Save writes the store in the text embedding format.
func (s *Store) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d\n", s.Count(), s.dim); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	for i, p := range s.phrases {
		bw.WriteString(p)
		for _, v := range s.vectors.RawRowView(i) {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write embeddings: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	return nil
}

// SaveFile writes the store to disk.
func (s *Store) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create embeddings: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SurfaceForm restores the separators in a stored phrase to plain spaces.
func SurfaceForm(phrase string) string {
	return strings.ReplaceAll(phrase, Separator, " ")
}

// Tokens splits a stored phrase into its constituent tokens.
func Tokens(phrase string) []string {
	return strings.Split(phrase, Separator)
}

// JoinTokens builds the stored form of a (possibly multiword) phrase.
func JoinTokens(tokens []string) string {
	return strings.Join(tokens, Separator)
}
