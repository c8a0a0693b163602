package connmgr

import "testing"

func TestBuildURL(t *testing.T) {
	cases := []struct {
		name    string
		base    string
		streams []string
		want    string
	}{
		{"zero streams", "wss://stream.example.com", nil, "wss://stream.example.com/ws"},
		{"one stream", "wss://stream.example.com", []string{"btcusdt@trade"}, "wss://stream.example.com/ws/btcusdt@trade"},
		{"two streams", "wss://stream.example.com", []string{"btcusdt@trade", "ethusdt@ticker"},
			"wss://stream.example.com/stream?streams=btcusdt@trade/ethusdt@ticker"},
		{"strips existing path", "wss://stream.example.com/old/path?x=1", nil, "wss://stream.example.com/ws"},
		{"trailing slash base", "wss://stream.example.com/", []string{"btcusdt@trade"}, "wss://stream.example.com/ws/btcusdt@trade"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildURL(tc.base, tc.streams)
			if err != nil {
				t.Fatalf("BuildURL returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("BuildURL(%q, %v) = %q, want %q", tc.base, tc.streams, got, tc.want)
			}
		})
	}
}

func TestBuildURLInvalidBase(t *testing.T) {
	_, err := BuildURL("://not-a-url", nil)
	if err == nil {
		t.Fatalf("expected error for malformed base url")
	}
}
