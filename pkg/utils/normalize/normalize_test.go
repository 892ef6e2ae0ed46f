package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	cases := map[string]string{
		"relay.example.com":        "wss://relay.example.com",
		"wss://relay.example.com/": "wss://relay.example.com",
		"WSS://Relay.Example.COM":  "wss://relay.example.com",
		"http://relay.example.com": "ws://relay.example.com",
		"localhost:8080":           "ws://localhost:8080",
		"127.0.0.1:7777":           "ws://127.0.0.1:7777",
		"":                         "",
	}
	for in, want := range cases {
		require.Equal(t, want, string(URL(in)), "input %q", in)
	}
}
