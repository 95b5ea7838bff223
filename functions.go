package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/die-net/socksx/internal/relay"
)

// newFunctions returns the per-connection stream functions selected by
// --function, or nil for none.
func newFunctions(name, chachaKey string, log *zap.Logger) (relay.Factory, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "count":
		return func() ([]relay.StreamFunction, []relay.StreamFunction, error) {
			up := relay.NewCounter(func(n int64) { log.Info("relayed", zap.String("direction", "to remote"), zap.Int64("bytes", n)) })
			down := relay.NewCounter(func(n int64) { log.Info("relayed", zap.String("direction", "to client"), zap.Int64("bytes", n)) })
			return []relay.StreamFunction{up}, []relay.StreamFunction{down}, nil
		}, nil
	case "log":
		return func() ([]relay.StreamFunction, []relay.StreamFunction, error) {
			up := relay.NewLogger(log.With(zap.String("direction", "to remote")))
			down := relay.NewLogger(log.With(zap.String("direction", "to client")))
			return []relay.StreamFunction{up}, []relay.StreamFunction{down}, nil
		}, nil
	case "chacha20":
		if len(chachaKey) != relay.ChaCha20KeySize {
			return nil, fmt.Errorf("--chacha20-key must be %d bytes, got %d", relay.ChaCha20KeySize, len(chachaKey))
		}
		key := []byte(chachaKey)
		// Traffic from the client is encrypted or decrypted; replies pass
		// through unchanged.
		return func() ([]relay.StreamFunction, []relay.StreamFunction, error) {
			f, err := relay.NewChaCha20(key)
			if err != nil {
				return nil, nil, err
			}
			return []relay.StreamFunction{f}, nil, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown function %q", name)
	}
}
