package binance

import (
	"strings"
	"testing"
)

func TestSignature(t *testing.T) {
	s := NewSigner("key", "secret")

	sig := s.signature("symbol=BTCUSDT&timestamp=1234567890")
	if sig == "" {
		t.Fatal("signature should not be empty")
	}
	if len(sig) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(sig))
	}

	sig2 := s.signature("symbol=BTCUSDT&timestamp=1234567890")
	if sig != sig2 {
		t.Error("same input should produce same signature")
	}

	sig3 := s.signature("symbol=BTCUSDT&timestamp=9999999999")
	if sig == sig3 {
		t.Error("different input should produce different signature")
	}
}

func TestSignatureKnownVector(t *testing.T) {
	// Vector from the exchange API documentation.
	s := NewSigner("", "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j")
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"
	if got := s.signature(payload); got != want {
		t.Errorf("signature mismatch: got %s", got)
	}
}

func TestSignQuery(t *testing.T) {
	s := NewSigner("key", "secret")

	signed := s.SignQuery("symbol=BTCUSDT")
	if !strings.HasPrefix(signed, "symbol=BTCUSDT&timestamp=") {
		t.Errorf("query prefix lost: %s", signed)
	}
	if !strings.Contains(signed, "&signature=") {
		t.Errorf("signature missing: %s", signed)
	}

	// Empty query still gets timestamp and signature.
	signed = s.SignQuery("")
	if !strings.HasPrefix(signed, "timestamp=") {
		t.Errorf("expected timestamp first: %s", signed)
	}
}
