package embedded

import (
	"bytes"
	"errors"
	"io"
	"os"

	"cmdgen/internal/common/fsutil"
	"cmdgen/internal/generator"
)

var ggufMagic = []byte("GGUF")

// Preflight checks that path names a readable GGUF file without loading it.
// Failures that a retry cannot fix are marked structural.
func Preflight(path string) error {
	head, err := fsutil.ReadHead(path, len(ggufMagic))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return generator.ErrModelLoad(path, "model file not found", true, err)
	case errors.Is(err, fsutil.ErrNotRegular):
		return generator.ErrModelLoad(path, "model path is not a regular file", true, nil)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return generator.ErrModelLoad(path, "model file is truncated", true, nil)
	case errors.Is(err, os.ErrPermission):
		return generator.ErrModelLoad(path, "model file is not readable", true, err)
	default:
		return generator.ErrModelLoad(path, "cannot read model file", false, err)
	}
	if !bytes.Equal(head, ggufMagic) {
		return generator.ErrModelLoad(path, "unsupported model format (expected GGUF)", true, nil)
	}
	return nil
}
