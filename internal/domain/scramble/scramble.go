// Package scramble shuffles words and draws word puzzles from a validated list.
package scramble

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
)

// maxReshuffles bounds retries when a shuffle returns the input unchanged.
const maxReshuffles = 3

const minWordLen = 3

//go:embed words/en.txt
var defaultWords []byte

// Rand is the subset of *rand.Rand the package needs.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Entry is a word and its hint.
type Entry struct {
	Word string
	Hint string
}

// Puzzle is one round of the word game.
type Puzzle struct {
	Answer  string
	Letters string
	Hint    string
}

// Scramble returns a uniformly shuffled permutation of word's letters.
// When the shuffle lands on the input and another arrangement exists it is
// retried a bounded number of times.
func Scramble(word string, r Rand) string {
	letters := []rune(word)
	if len(letters) < 2 {
		return word
	}
	distinct := hasDistinct(letters)
	for attempt := 0; ; attempt++ {
		r.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
		out := string(letters)
		if out != word || !distinct || attempt >= maxReshuffles {
			return out
		}
	}
}

func hasDistinct(letters []rune) bool {
	for _, l := range letters[1:] {
		if l != letters[0] {
			return true
		}
	}
	return false
}

// Validate checks that word is uppercase A-Z and at least three letters long.
func Validate(word string) error {
	if len(word) < minWordLen {
		return fmt.Errorf("%w: %q shorter than %d letters", ErrInvalidWord, word, minWordLen)
	}
	for _, c := range word {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidWord, word, c)
		}
	}
	return nil
}

// Parse reads WORD|hint lines. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, hint, _ := strings.Cut(text, "|")
		word = strings.TrimSpace(word)
		if err := Validate(word); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, Entry{Word: word, Hint: strings.TrimSpace(hint)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyList
	}
	return entries, nil
}

// Default returns the embedded English word list.
func Default() []Entry {
	entries, err := Parse(bytes.NewReader(defaultWords))
	if err != nil {
		panic(fmt.Sprintf("scramble: embedded word list: %v", err))
	}
	return entries
}

// Generator draws puzzles from a word list. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entries []Entry
	rng     Rand
}

// NewGenerator validates entries and returns a Generator over them.
func NewGenerator(entries []Entry, opts ...Option) (*Generator, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyList
	}
	for _, e := range entries {
		if err := Validate(e.Word); err != nil {
			return nil, err
		}
	}
	g := &Generator{
		entries: append([]Entry(nil), entries...),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Next draws a uniformly random entry and scrambles it.
func (g *Generator) Next() Puzzle {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.entries[g.rng.IntN(len(g.entries))]
	return Puzzle{Answer: e.Word, Letters: Scramble(e.Word, g.rng), Hint: e.Hint}
}
