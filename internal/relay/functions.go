package relay

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20"
)

// Counter counts the bytes passing through it and reports the total when
// the direction ends.
type Counter struct {
	n     atomic.Int64
	onEnd func(int64)
}

// NewCounter returns a Counter that calls onEnd, if non-nil, with the final
// byte count.
func NewCounter(onEnd func(n int64)) *Counter {
	return &Counter{onEnd: onEnd}
}

func (c *Counter) Partial(b []byte) []byte {
	c.n.Add(int64(len(b)))
	return b
}

func (c *Counter) End() {
	if c.onEnd != nil {
		c.onEnd(c.n.Load())
	}
}

// Count returns the number of bytes seen so far. It is safe to call from any
// goroutine.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// ChaCha20KeySize is the key length NewChaCha20 expects.
const ChaCha20KeySize = chacha20.KeySize

var chacha20Nonce = []byte("secret nonce")

// ChaCha20 XORs the stream with a ChaCha20 keystream. The keystream runs on
// across chunks, so applying a second ChaCha20 with the same key to the
// output restores the input.
type ChaCha20 struct {
	c *chacha20.Cipher
}

// NewChaCha20 returns a ChaCha20 function for a 32-byte key.
func NewChaCha20(key []byte) (*ChaCha20, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, chacha20Nonce)
	if err != nil {
		return nil, fmt.Errorf("chacha20: %w", err)
	}
	return &ChaCha20{c: c}, nil
}

func (f *ChaCha20) Partial(b []byte) []byte {
	f.c.XORKeyStream(b, b)
	return b
}

func (f *ChaCha20) End() {}

// Logger logs each chunk size and the end of the stream at debug level.
type Logger struct {
	log    *zap.Logger
	chunks int
	bytes  int64
}

// NewLogger returns a Logger writing to log, which should already carry
// fields identifying the connection and direction.
func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Partial(b []byte) []byte {
	l.chunks++
	l.bytes += int64(len(b))
	l.log.Debug("relay chunk", zap.Int("size", len(b)))
	return b
}

func (l *Logger) End() {
	l.log.Debug("relay end", zap.Int("chunks", l.chunks), zap.Int64("bytes", l.bytes))
}

// Factory builds fresh function lists for one relayed connection, for the
// client-to-remote and remote-to-client directions.
type Factory func() (toRemote, toClient []StreamFunction, err error)
