package eventbus

import (
	"crypto/rand"
	"io"
)

func newEntropySource() io.Reader { return rand.Reader }
