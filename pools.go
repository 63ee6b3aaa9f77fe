package pool

import (
	"bytes"
	"sync"
)

var bufferPool = &sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func releaseBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}
