// Package words generates human readable note identifiers from a word list.
package words

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed words.json
var builtin []byte

const (
	DefaultSeparator   = "-"
	DefaultMaxAttempts = 10000
)

var ErrConfiguration = errors.New("words: invalid configuration")

type (
	// OccupancyChecker reports whether an id belongs to a currently stored note.
	OccupancyChecker interface {
		Exists(ctx context.Context, id string) (bool, error)
	}

	Generator struct {
		words       []string
		separator   string
		maxAttempts int
		checker     OccupancyChecker
		intn        func(n int) int
	}

	Option func(*Generator)
)

func WithSeparator(sep string) Option {
	return func(g *Generator) {
		if sep != "" {
			g.separator = sep
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRand replaces the source of randomness. intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(g *Generator) { g.intn = intn }
}

func New(list []string, checker OccupancyChecker, opts ...Option) (*Generator, error) {
	g := &Generator{
		separator:   DefaultSeparator,
		maxAttempts: DefaultMaxAttempts,
		checker:     checker,
		intn:        rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	if checker == nil {
		return nil, fmt.Errorf("%w: occupancy checker is required", ErrConfiguration)
	}
	g.words = normalize(list, g.separator)
	if len(g.words) == 0 {
		return nil, fmt.Errorf("%w: word list is empty", ErrConfiguration)
	}
	return g, nil
}

// Generate returns an id made of two words that is not currently in use.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for range g.maxAttempts {
		id := g.words[g.intn(len(g.words))] + g.separator + g.words[g.intn(len(g.words))]
		exists, err := g.checker.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("words: error checking id occupancy: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no free id after %d attempts", ErrConfiguration, g.maxAttempts)
}

func (g *Generator) Len() int { return len(g.words) }

// Load reads a word list from path. The file holds a JSON or YAML array of
// strings. An empty path yields the embedded list.
func Load(path string) ([]string, error) {
	src := builtin
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		src = b
	}
	var list []string
	if err := yaml.Unmarshal(src, &list); err != nil {
		return nil, fmt.Errorf("%w: error parsing word list: %w", ErrConfiguration, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: word list is empty", ErrConfiguration)
	}
	return list, nil
}

func normalize(list []string, sep string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, w := range list {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || strings.Contains(w, sep) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
