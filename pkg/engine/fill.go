package engine

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
)

// A Filler populates the chunk buffer before each write. It must fill
// every byte of b and may be handed the same backing slice repeatedly.
type Filler interface {
	Fill(b []byte) error
}

// NewFiller picks the filler for a data type once, up front, so the
// write loop itself stays free of branching on the type.
func NewFiller(data string) (Filler, error) {
	switch data {
	case DataRandom:
		return randomFiller{}, nil
	case DataZero:
		return zeroFiller{}, nil
	}
	return nil, errors.Errorf("unknown data type %q", data)
}

// randomFiller draws every byte from the OS CSPRNG. There is no seed,
// so two runs can never produce the same file contents.
type randomFiller struct{}

func (randomFiller) Fill(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return errors.Wrap(err, "read random data")
	}
	return nil
}

// zeroFiller writes compressible all-zero chunks, useful for telling
// apart devices that dedupe or compress from ones that do not.
type zeroFiller struct{}

func (zeroFiller) Fill(b []byte) error {
	for i := range b {
		b[i] = 0
	}
	return nil
}
