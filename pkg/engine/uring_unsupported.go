//go:build !linux

package engine

import (
	"github.com/pkg/errors"
)

func openUring(path string) (chunkWriter, error) {
	return nil, errors.New("the uring engine is only supported on Linux")
}
