package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNewKey(t *testing.T) {
	for _, n := range []int{16, 24, 32} {
		key, err := GenerateNewKey(n)
		require.NoError(t, err)
		assert.Len(t, key, n)
	}

	_, err := GenerateNewKey(7)
	assert.Error(t, err)

	a, _ := GenerateNewKey(32)
	b, _ := GenerateNewKey(32)
	assert.NotEqual(t, a, b)
}

func TestSealer(t *testing.T) {
	key, err := GenerateNewKey(32)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("hello"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "hello")

	again, err := s.Seal([]byte("hello"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per message")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortMessage)
}

func TestSealerWrongKey(t *testing.T) {
	k1, _ := GenerateNewKey(16)
	k2, _ := GenerateNewKey(16)
	s1, err := NewSealer(k1)
	require.NoError(t, err)
	s2, err := NewSealer(k2)
	require.NoError(t, err)

	sealed, err := s1.Seal([]byte("hello"))
	require.NoError(t, err)
	_, err = s2.Open(sealed)
	assert.Error(t, err)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}
