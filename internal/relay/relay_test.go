package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksx/internal/testutil"
)

type upper struct{ ended int }

func (u *upper) Partial(b []byte) []byte { return bytes.ToUpper(b) }
func (u *upper) End()                    { u.ended++ }

type recorder struct {
	name  string
	order *[]string
}

func (r recorder) Partial(b []byte) []byte { return b }
func (r recorder) End()                    { *r.order = append(*r.order, r.name) }

func readN(t *testing.T, r io.Reader, n int) string {
	t.Helper()

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	return string(buf)
}

func expectEOF(t *testing.T, r io.Reader) {
	t.Helper()

	var buf [1]byte
	if n, err := r.Read(buf[:]); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got n=%d err=%v", n, err)
	}
}

func startRelay(t *testing.T, ctx context.Context, aToB, bToA []StreamFunction) (client, remote *net.TCPConn, done <-chan error) {
	t.Helper()

	client, a := testutil.TCPPair(t, ctx)
	b, remote := testutil.TCPPair(t, ctx)

	ch := make(chan error, 1)
	go func() { ch <- CopyBidirectional(ctx, a, b, aToB, bToA) }()

	return client, remote, ch
}

func waitRelay(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not finish")
		return nil
	}
}

func TestCopyBidirectionalFidelity(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, remote, done := startRelay(t, ctx, nil, nil)

	testutil.AssertEcho(t, client, remote, []byte("abc"))
	testutil.AssertEcho(t, remote, client, []byte("xyz"))

	_ = client.CloseWrite()
	_ = remote.CloseWrite()
	expectEOF(t, remote)
	expectEOF(t, client)

	if err := waitRelay(t, done); err != nil {
		t.Fatal(err)
	}
}

func TestCopyBidirectionalHalfClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, remote, done := startRelay(t, ctx, nil, nil)

	if _, err := client.Write([]byte("request")); err != nil {
		t.Fatal(err)
	}
	_ = client.CloseWrite()

	if got := readN(t, remote, len("request")); got != "request" {
		t.Fatalf("got %q", got)
	}
	expectEOF(t, remote)

	// The other direction still flows after the client finished sending.
	if _, err := remote.Write([]byte("response")); err != nil {
		t.Fatal(err)
	}
	if got := readN(t, client, len("response")); got != "response" {
		t.Fatalf("got %q", got)
	}

	select {
	case err := <-done:
		t.Fatalf("relay finished early: %v", err)
	default:
	}

	_ = remote.CloseWrite()
	expectEOF(t, client)

	if err := waitRelay(t, done); err != nil {
		t.Fatal(err)
	}
}

func TestCopyBidirectionalFunctions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var toRemote, toClient int64
	up := &upper{}
	aToB := []StreamFunction{up, NewCounter(func(n int64) { toRemote = n })}
	bToA := []StreamFunction{NewCounter(func(n int64) { toClient = n })}

	client, remote, done := startRelay(t, ctx, aToB, bToA)

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if got := readN(t, remote, 5); got != "HELLO" {
		t.Fatalf("got %q", got)
	}
	testutil.AssertEcho(t, remote, client, []byte("world!"))

	_ = client.CloseWrite()
	_ = remote.CloseWrite()

	if err := waitRelay(t, done); err != nil {
		t.Fatal(err)
	}

	if toRemote != 5 || toClient != 6 {
		t.Fatalf("counted %d/%d bytes, want 5/6", toRemote, toClient)
	}
	if up.ended != 1 {
		t.Fatalf("End called %d times", up.ended)
	}
}

func TestCopyBidirectionalEndOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var order []string
	aToB := []StreamFunction{recorder{"first", &order}, recorder{"second", &order}, recorder{"third", &order}}

	client, remote, done := startRelay(t, ctx, aToB, nil)
	_ = client.CloseWrite()
	_ = remote.CloseWrite()

	if err := waitRelay(t, done); err != nil {
		t.Fatal(err)
	}

	if got := len(order); got != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("End order %v", order)
	}
}

func TestCopyBidirectionalCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, done := startRelay(t, ctx, nil, nil)

	cancel()

	if err := waitRelay(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf [1]byte
	if _, err := client.Read(buf[:]); err == nil {
		t.Fatal("expected closed connection")
	}
}

func TestChaCha20RoundTrip(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x42}, ChaCha20KeySize)
	enc, err := NewChaCha20(key)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewChaCha20(key)
	if err != nil {
		t.Fatal(err)
	}

	plain := bytes.Repeat([]byte("attack at dawn "), 100)

	var cipherText []byte
	for _, chunk := range [][]byte{plain[:7], plain[7:500], plain[500:]} {
		cipherText = append(cipherText, enc.Partial(append([]byte(nil), chunk...))...)
	}
	if bytes.Equal(cipherText, plain) {
		t.Fatal("ciphertext equals plaintext")
	}

	// Different chunk boundaries on the decrypting side.
	var got []byte
	for _, chunk := range [][]byte{cipherText[:1000], cipherText[1000:]} {
		got = append(got, dec.Partial(append([]byte(nil), chunk...))...)
	}
	if !bytes.Equal(got, plain) {
		t.Fatal("round trip mismatch")
	}
}

func TestChaCha20BadKey(t *testing.T) {
	t.Parallel()

	if _, err := NewChaCha20([]byte("short")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	l := NewLogger(zap.NewNop())
	if got := string(l.Partial([]byte("abc"))); got != "abc" {
		t.Fatalf("got %q", got)
	}
	l.End()
	if l.chunks != 1 || l.bytes != 3 {
		t.Fatalf("chunks=%d bytes=%d", l.chunks, l.bytes)
	}
}
