package tuning

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"smt-go/internal/moses"
)

// TranslationCache persists source-to-translation pairs as tab-separated
// lines so that a sentence translated once during tuning never reaches
// the decoder again. The cache is mutated only by the coordinating
// goroutine.
type TranslationCache struct {
	path    string
	entries map[string]string
}

// OpenTranslationCache loads the cache at path, creating an empty file
// when none exists.
func OpenTranslationCache(path string) (*TranslationCache, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &TranslationCache{path: path, entries: make(map[string]string)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		src, trg, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed cache line %q in %s", line, path)
		}
		c.entries[src] = trg
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c, nil
}

// Get returns the cached translation for src.
func (c *TranslationCache) Get(src string) (string, bool) {
	trg, ok := c.entries[src]
	return trg, ok
}

// Len returns the number of cached pairs.
func (c *TranslationCache) Len() int {
	return len(c.entries)
}

// Missing returns the lines with no cached translation, deduplicated, in
// first-seen order.
func (c *TranslationCache) Missing(lines []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range lines {
		if _, ok := c.entries[line]; ok {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

// Add stores the pairs in memory and appends them to the cache file.
func (c *TranslationCache) Add(srcs, trgs []string) error {
	if len(srcs) != len(trgs) {
		return fmt.Errorf("cannot cache %d sources against %d translations", len(srcs), len(trgs))
	}
	if len(srcs) == 0 {
		return nil
	}
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for i := range srcs {
		c.entries[srcs[i]] = trgs[i]
		fmt.Fprintf(bw, "%s\t%s\n", srcs[i], trgs[i])
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CachedDecoder fills translation requests from a cache, batching only
// the misses through the underlying decoder.
type CachedDecoder struct {
	decoder Decoder
	cache   *TranslationCache
}

// NewCachedDecoder wraps decoder with the given cache.
func NewCachedDecoder(decoder Decoder, cache *TranslationCache) *CachedDecoder {
	return &CachedDecoder{decoder: decoder, cache: cache}
}

// TranslateAll translates lines in order, decoding the uncached ones in
// a single batch and recording their translations.
func (d *CachedDecoder) TranslateAll(ctx context.Context, config string, lines []string, opts moses.DecodeOptions) ([]string, error) {
	missing := d.cache.Missing(lines)
	if len(missing) > 0 {
		translated, err := d.decoder.Translate(ctx, config, missing, opts)
		if err != nil {
			return nil, err
		}
		if err := d.cache.Add(missing, translated); err != nil {
			return nil, err
		}
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		trg, ok := d.cache.Get(line)
		if !ok {
			return nil, fmt.Errorf("no translation recorded for %q", line)
		}
		out[i] = trg
	}
	return out, nil
}
