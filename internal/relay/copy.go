package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StreamFunction transforms one direction of a relayed stream.
//
// Partial is called with each chunk read from the source, in order, and
// returns the bytes to hand on; it may modify the chunk in place. End is
// called once when the direction finishes. A function is used by a single
// direction and need not be safe for concurrent use.
type StreamFunction interface {
	Partial(b []byte) []byte
	End()
}

type closeWriter interface {
	CloseWrite() error
}

// CopyBidirectional relays a→b through aToB and b→a through bToA until both
// directions finish, then closes both connections. Canceling ctx closes both
// connections to abort the relay.
//
// io.EOF is not an error. Otherwise the first pump error is returned.
func CopyBidirectional(ctx context.Context, a, b net.Conn, aToB, bToA []StreamFunction) error {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = a.Close()
			_ = b.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var g errgroup.Group
	g.Go(func() error { return pump(b, a, aToB) })
	g.Go(func() error { return pump(a, b, bToA) })

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// pump copies src to dst one chunk at a time. When src is exhausted or dst
// refuses a write, it ends every function and half-closes dst.
func pump(dst, src net.Conn, fns []StreamFunction) error {
	buf := buffers.Get()
	defer buffers.Put(buf)

	defer func() {
		for _, f := range fns {
			f.End()
		}
		if cw, ok := dst.(closeWriter); ok {
			_ = cw.CloseWrite()
		}
	}()

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for _, f := range fns {
				chunk = f.Partial(chunk)
			}
			if len(chunk) > 0 {
				if _, werr := dst.Write(chunk); werr != nil {
					return werr
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return rerr
		}
	}
}
