package phrasetable

import (
	"bytes"
	"strings"
	"testing"
)

func TestExtractDict(t *testing.T) {
	in := "dog ||| perro ||| 0.1 0.2 0.3 0.4 ||| ||| ||| |||\n" +
		"the dog ||| el perro ||| 0.5 0.6 0.7 0.8 ||| ||| ||| |||\n" +
		"cat ||| gato ||| 0.9 1e-05 2.5e-07 0.2 ||| ||| ||| |||\n"

	var out bytes.Buffer
	if err := ExtractDict(strings.NewReader(in), &out, DictOptions{Feature: 2}); err != nil {
		t.Fatalf("Failed to extract dictionary: %v", err)
	}

	// Multiword entries are dropped, and the third score is copied verbatim.
	want := "dog\tperro\t0.3\ncat\tgato\t2.5e-07\n"
	if out.String() != want {
		t.Fatalf("Expected %q, got %q", want, out.String())
	}
}

func TestExtractDict_Reverse(t *testing.T) {
	in := "dog ||| perro ||| 0.1 0.2 0.3 0.4 ||| ||| ||| |||\n"

	var out bytes.Buffer
	if err := ExtractDict(strings.NewReader(in), &out, DictOptions{Feature: 0, Reverse: true}); err != nil {
		t.Fatalf("Failed to extract dictionary: %v", err)
	}

	want := "perro\tdog\t0.1\n"
	if out.String() != want {
		t.Fatalf("Expected %q, got %q", want, out.String())
	}
}

func TestExtractDict_IncludePhrases(t *testing.T) {
	in := "the dog ||| el perro ||| 0.5 0.6 0.7 0.8 ||| ||| ||| |||\n"

	var out bytes.Buffer
	opts := DictOptions{Feature: 2, IncludePhrases: true}
	if err := ExtractDict(strings.NewReader(in), &out, opts); err != nil {
		t.Fatalf("Failed to extract dictionary: %v", err)
	}

	want := "the dog\tel perro\t0.7\n"
	if out.String() != want {
		t.Fatalf("Expected %q, got %q", want, out.String())
	}
}

func TestExtractDict_FeatureOutOfRange(t *testing.T) {
	in := "dog ||| perro ||| 0.1 0.2 ||| ||| ||| |||\n"

	var out bytes.Buffer
	if err := ExtractDict(strings.NewReader(in), &out, DictOptions{Feature: 5}); err == nil {
		t.Fatal("Expected error for feature index beyond the score column")
	}
}

func TestExtractDict_MalformedRecord(t *testing.T) {
	in := "only two ||| columns\n"

	var out bytes.Buffer
	if err := ExtractDict(strings.NewReader(in), &out, DictOptions{}); err == nil {
		t.Fatal("Expected error for record without a score column")
	}
}
