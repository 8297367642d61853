package tuning

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"smt-go/internal/moses"
)

func TestPseudoReferenceBuilder_Unsupervised(t *testing.T) {
	dir := t.TempDir()
	src := writeTestLines(t, dir, "src.txt", []string{"uno", "dos"})
	trg := writeTestLines(t, dir, "trg.txt", []string{"one", "two"})

	decoder := &scriptedDecoder{
		translate: func(_ int, config string, lines []string, opts moses.DecodeOptions) ([]string, error) {
			if config != "b2a.it0" {
				t.Fatalf("Expected back-translation through the reverse config, got %q", config)
			}
			if opts.CubePruning != 0 || opts.WordPenalty != nil {
				t.Fatal("Expected plain decoding for the pseudo input")
			}
			out := make([]string, len(lines))
			for i, line := range lines {
				out[i] = "bt " + line
			}
			return out, nil
		},
	}
	b := NewPseudoReferenceBuilder(decoder, zap.NewNop())

	work := t.TempDir()
	if err := b.Build(context.Background(), work, src, trg, "b2a.it0", false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	input, err := readLines(filepath.Join(work, moses.InputFile))
	if err != nil {
		t.Fatalf("Failed to read input: %v", err)
	}
	if len(input) != 2 || input[0] != "bt one" || input[1] != "bt two" {
		t.Fatalf("Expected the back-translated target corpus, got %v", input)
	}

	ref, err := readLines(filepath.Join(work, moses.ReferenceFile))
	if err != nil {
		t.Fatalf("Failed to read reference: %v", err)
	}
	want := []string{"one", "two", "uno", "dos"}
	if len(ref) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ref)
	}
	for i := range want {
		if ref[i] != want[i] {
			t.Fatalf("Expected the target corpus before the source corpus, got %v", ref)
		}
	}
}

func TestPseudoReferenceBuilder_Supervised(t *testing.T) {
	dir := t.TempDir()
	src := writeTestLines(t, dir, "src.txt", []string{"uno", "dos"})
	trg := writeTestLines(t, dir, "trg.txt", []string{"one", "two"})

	decoder := &scriptedDecoder{}
	b := NewPseudoReferenceBuilder(decoder, zap.NewNop())

	work := t.TempDir()
	if err := b.Build(context.Background(), work, src, trg, "b2a.it0", true); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if decoder.calls != 0 {
		t.Fatalf("Expected no decoding in supervised mode, got %d calls", decoder.calls)
	}

	input, err := readLines(filepath.Join(work, moses.InputFile))
	if err != nil {
		t.Fatalf("Failed to read input: %v", err)
	}
	if len(input) != 2 || input[0] != "uno" {
		t.Fatalf("Expected the source dev corpus, got %v", input)
	}
	ref, err := readLines(filepath.Join(work, moses.ReferenceFile))
	if err != nil {
		t.Fatalf("Failed to read reference: %v", err)
	}
	if len(ref) != 2 || ref[0] != "one" {
		t.Fatalf("Expected the target dev corpus, got %v", ref)
	}
}
