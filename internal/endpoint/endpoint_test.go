package endpoint

import (
	"errors"
	"net"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Endpoint
		wantErr bool
	}{
		{in: "127.0.0.1:1080", want: Endpoint{Host: "127.0.0.1", Port: 1080}},
		{in: "[::1]:443", want: Endpoint{Host: "::1", Port: 443}},
		{in: "example.com:80", want: Endpoint{Host: "example.com", Port: 80}},
		{in: "socks6://proxy.example:1080", want: Endpoint{Host: "proxy.example", Port: 1080}},
		{in: "localhost:0", want: Endpoint{Host: "localhost", Port: 0}},
		{in: "[::ffff:1.2.3.4]:80", want: Endpoint{Host: "1.2.3.4", Port: 80}},
		{in: "[2001:DB8::1]:443", want: Endpoint{Host: "2001:db8::1", Port: 443}},
		{in: "example.com", wantErr: true},
		{in: ":80", wantErr: true},
		{in: "example.com:65536", wantErr: true},
		{in: "example.com:-1", wantErr: true},
		{in: "bad host:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrAddress) {
					t.Fatalf("expected ErrAddress, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, e := range []Endpoint{
		New("10.0.0.1", 1),
		New("2001:db8::1", 8080),
		New("proxy.example", 1080),
	} {
		got, err := Parse(e.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", e.String(), err)
		}
		if got != e {
			t.Fatalf("got %+v want %+v", got, e)
		}
	}
}

func TestFromAddr(t *testing.T) {
	t.Parallel()

	got, err := FromAddr(&net.TCPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 1234})
	if err != nil {
		t.Fatal(err)
	}
	if want := New("192.0.2.1", 1234); got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if !got.IsIP() {
		t.Fatal("expected IP endpoint")
	}

	if _, err := FromAddr(nil); !errors.Is(err, ErrAddress) {
		t.Fatalf("expected ErrAddress, got %v", err)
	}
}

func TestNewCanonicalizesIP(t *testing.T) {
	t.Parallel()

	if got := New("::FFFF:10.0.0.1", 1); got != New("10.0.0.1", 1) {
		t.Fatalf("got %+v", got)
	}
	if got := New("Example.COM", 1).Host; got != "Example.COM" {
		t.Fatalf("hostname changed to %q", got)
	}
}

func TestValidHost(t *testing.T) {
	t.Parallel()

	for _, h := range []string{"example.com", "localhost", "10.0.0.1", "2001:db8::1"} {
		if !ValidHost(h) {
			t.Errorf("ValidHost(%q) = false", h)
		}
	}
	for _, h := range []string{"", "bad host!", "evil:99", "\x00\x01"} {
		if ValidHost(h) {
			t.Errorf("ValidHost(%q) = true", h)
		}
	}
}
