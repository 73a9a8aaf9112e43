package words

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type occupied map[string]bool

func (o occupied) Exists(_ context.Context, id string) (bool, error) {
	return o[id], nil
}

type failingChecker struct{}

func (failingChecker) Exists(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

// sequence returns the given indexes in order, wrapping around.
func sequence(idx ...int) func(int) int {
	i := 0
	return func(n int) int {
		v := idx[i%len(idx)] % n
		i++
		return v
	}
}

func TestGenerate(t *testing.T) {
	g, err := New([]string{"apple", "river"}, occupied{}, WithRand(sequence(0, 1)))
	require.NoError(t, err)

	id, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "apple-river", id)
}

func TestGenerateSameWordTwice(t *testing.T) {
	g, err := New([]string{"apple"}, occupied{})
	require.NoError(t, err)

	id, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "apple-apple", id)
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	g, err := New([]string{"apple", "river"}, occupied{"apple-river": true}, WithRand(sequence(0, 1, 1, 0)))
	require.NoError(t, err)

	id, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "river-apple", id)
}

func TestGenerateAttemptsExhausted(t *testing.T) {
	g, err := New([]string{"apple"}, occupied{"apple-apple": true}, WithMaxAttempts(5))
	require.NoError(t, err)

	_, err = g.Generate(context.Background())
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGenerateCheckerError(t *testing.T) {
	g, err := New([]string{"apple"}, failingChecker{})
	require.NoError(t, err)

	_, err = g.Generate(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfiguration)
}

func TestGenerateCustomSeparator(t *testing.T) {
	g, err := New([]string{"apple", "river"}, occupied{}, WithSeparator("."), WithRand(sequence(1, 0)))
	require.NoError(t, err)

	id, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "river.apple", id)
}

func TestNewEmptyList(t *testing.T) {
	_, err := New(nil, occupied{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New([]string{" ", "a-b"}, occupied{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New([]string{"apple"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewNormalizes(t *testing.T) {
	g, err := New([]string{" Apple ", "apple", "RIVER", "two-words"}, occupied{})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "river"}, g.words)
}

func TestLoadBuiltin(t *testing.T) {
	list, err := Load("")
	require.NoError(t, err)
	assert.Greater(t, len(list), 200)
	assert.Contains(t, list, "apple")
	assert.Contains(t, list, "river")
	for _, w := range list {
		assert.False(t, strings.Contains(w, DefaultSeparator), w)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "words.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`["apple", "river"]`), 0o600))
	list, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "river"}, list)

	yamlPath := filepath.Join(dir, "words.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- stone\n- cloud\n"), 0o600))
	list, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"stone", "cloud"}, list)

	emptyPath := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(emptyPath, []byte(`[]`), 0o600))
	_, err = Load(emptyPath)
	assert.ErrorIs(t, err, ErrConfiguration)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"a": 1}`), 0o600))
	_, err = Load(badPath)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrConfiguration)
}
