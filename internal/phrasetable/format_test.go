package phrasetable

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Write(Entry{
		Source:         "nueva york",
		Target:         "new york",
		Inverse:        0.25,
		InverseLexical: 0.001,
		Direct:         0.5,
		DirectLexical:  0.125,
	})
	if err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	want := "nueva york ||| new york ||| 0.25 0.001 0.5 0.125 ||| ||| ||| |||\n"
	if buf.String() != want {
		t.Fatalf("Expected %q, got %q", want, buf.String())
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	line := "nueva york ||| new york ||| 0.25 0.001 0.5 0.125 ||| ||| ||| |||"
	rec := ParseRecord(line)

	if rec.Source() != "nueva york" {
		t.Fatalf("Expected source 'nueva york', got %q", rec.Source())
	}
	if rec.Target() != "new york" {
		t.Fatalf("Expected target 'new york', got %q", rec.Target())
	}
	scores := rec.Scores()
	if len(scores) != 4 || scores[0] != "0.25" || scores[3] != "0.125" {
		t.Fatalf("Expected 4 score tokens, got %v", scores)
	}
	if rec.String() != line {
		t.Fatalf("Expected join to reproduce the line, got %q", rec.String())
	}
}

func TestReader_Scan(t *testing.T) {
	in := "a ||| x ||| 0.1 ||| ||| ||| |||\n" +
		"b ||| y ||| 0.2 ||| ||| ||| |||\n"
	r := NewReader(strings.NewReader(in))

	var sources []string
	for r.Scan() {
		sources = append(sources, r.Record().Source())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Unexpected scan error: %v", err)
	}
	if len(sources) != 2 || sources[0] != "a" || sources[1] != "b" {
		t.Fatalf("Expected sources [a b], got %v", sources)
	}
}

func TestWriter_ScoreFormatting(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Write(Entry{
		Source:         "cat",
		Target:         "gato",
		Inverse:        0.9,
		InverseLexical: 1e-05,
		Direct:         2.5e-07,
		DirectLexical:  0.2,
	})
	if err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	want := "cat ||| gato ||| 0.9 1e-05 2.5e-07 0.2 ||| ||| ||| |||\n"
	if buf.String() != want {
		t.Fatalf("Expected %q, got %q", want, buf.String())
	}
}
