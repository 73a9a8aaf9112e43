package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pudottapommin/shelf/pkg/encryption"
	"github.com/valyala/bytebufferpool"
)

// Codec transforms note content on its way to and from the backend.
type Codec interface {
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Encode(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	return c.enc.EncodeAll(src, nil), nil
}

func (c *ZstdCodec) Decode(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)
	out, err := c.dec.DecodeAll(src, b.B[:0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	b.B = out
	return append([]byte(nil), out...), nil
}

type sealedCodec struct {
	next   Codec
	sealer *encryption.Sealer
}

// NewSealedCodec encrypts the output of next with AES-GCM under key.
func NewSealedCodec(next Codec, key []byte) (Codec, error) {
	sealer, err := encryption.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &sealedCodec{next: next, sealer: sealer}, nil
}

func (c *sealedCodec) Encode(src []byte) ([]byte, error) {
	buf, err := c.next.Encode(src)
	if err != nil {
		return nil, err
	}
	return c.sealer.Seal(buf)
}

func (c *sealedCodec) Decode(src []byte) ([]byte, error) {
	buf, err := c.sealer.Open(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return c.next.Decode(buf)
}

// NewCodec builds the default content codec: zstd, sealed when key is set.
func NewCodec(key []byte) (Codec, error) {
	z, err := NewZstdCodec()
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return z, nil
	}
	return NewSealedCodec(z, key)
}
