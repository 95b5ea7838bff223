package chain

import (
	"errors"
	"testing"
)

func mustLinks(t *testing.T, s ...string) []Link {
	t.Helper()
	links, err := ParseLinks(s)
	if err != nil {
		t.Fatal(err)
	}
	return links
}

func TestResolve(t *testing.T) {
	t.Parallel()

	requested := New(mustLinks(t, "req1:1080", "req2:1080")...)
	configured := mustLinks(t, "h1:1080", "h2:1080", "h3:1080")

	tests := []struct {
		name       string
		requested  *Chain
		configured []Link
		want       *Chain
	}{
		{name: "neither"},
		{name: "requested only", requested: &requested, want: &requested},
		{name: "configured only", configured: configured, want: ptr(New(configured...))},
		{name: "configured wins", requested: &requested, configured: configured, want: ptr(New(configured...))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Resolve(tt.requested, tt.configured)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Fatalf("got %v want %v", got, tt.want)
			case !got.Equal(*tt.want):
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestResolveDoesNotAlias(t *testing.T) {
	t.Parallel()

	configured := mustLinks(t, "h1:1080")
	got := Resolve(nil, configured)
	configured[0].Port = 1

	l, err := got.NextLink()
	if err != nil {
		t.Fatal(err)
	}
	if l.Port != 1080 {
		t.Fatalf("resolved chain aliases configured slice: %v", l)
	}
}

func TestChainTraversal(t *testing.T) {
	t.Parallel()

	links := mustLinks(t, "h1:1001", "h2:1002", "h3:1003")
	c := Resolve(nil, links)
	if c == nil {
		t.Fatal("expected chain")
	}
	if c.Cursor() != 0 || c.Len() != 3 {
		t.Fatalf("got cursor=%d len=%d", c.Cursor(), c.Len())
	}

	cur := *c
	for i, want := range links {
		if !cur.HasNext() {
			t.Fatalf("hop %d: HasNext false", i)
		}
		got, err := cur.NextLink()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("hop %d: got %v want %v", i, got, want)
		}

		// NextLink does not advance.
		again, _ := cur.NextLink()
		if again != got {
			t.Fatalf("hop %d: NextLink advanced the chain", i)
		}

		res := cur.Residual()
		if res.Cursor() != 0 {
			t.Fatalf("hop %d: residual cursor %d", i, res.Cursor())
		}
		if res.Len() != len(links)-i-1 {
			t.Fatalf("hop %d: residual len %d", i, res.Len())
		}
		for _, l := range res.Links() {
			if l == got {
				t.Fatalf("hop %d: residual still contains consumed hop %v", i, got)
			}
		}
		cur = res
	}

	if cur.HasNext() {
		t.Fatal("expected exhausted chain")
	}
	if _, err := cur.NextLink(); !errors.Is(err, ErrChainExhausted) {
		t.Fatalf("expected ErrChainExhausted, got %v", err)
	}
}

func TestResidualFromMidChain(t *testing.T) {
	t.Parallel()

	c := NewAt(1, mustLinks(t, "h1:1", "h2:2", "h3:3"))
	next, err := c.NextLink()
	if err != nil {
		t.Fatal(err)
	}
	if next.Host != "h2" {
		t.Fatalf("got %v", next)
	}
	want := New(mustLinks(t, "h3:3")...)
	if got := c.Residual(); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNewAtClampsCursor(t *testing.T) {
	t.Parallel()

	links := mustLinks(t, "h1:1")
	if c := NewAt(5, links); c.Cursor() != 1 || c.HasNext() {
		t.Fatalf("got %v", c)
	}
	if c := NewAt(-1, links); c.Cursor() != 0 {
		t.Fatalf("got %v", c)
	}

	var zero Chain
	if zero.HasNext() {
		t.Fatal("zero chain should be exhausted")
	}
	if got := zero.Residual(); got.Len() != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestParseLinks(t *testing.T) {
	t.Parallel()

	links := mustLinks(t, "socks6://p1.example:1080", " p2.example:1081 ")
	if links[0].String() != "p1.example:1080" || links[1].String() != "p2.example:1081" {
		t.Fatalf("got %v", links)
	}
	if _, err := ParseLinks([]string{"nope"}); err == nil {
		t.Fatal("expected error")
	}
}

func ptr(c Chain) *Chain { return &c }
