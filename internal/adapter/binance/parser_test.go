package binance

import (
	"testing"

	"github.com/coachpo/feedgate/internal/bus"
)

func TestParseMessageTickerFrame(t *testing.T) {
	frame := []byte(`{"stream":"btcusdt@ticker","data":{"E":1700000000000,"s":"BTCUSDT","c":"50000"}}`)
	rec, ok := ParseMessage(frame)
	if !ok {
		t.Fatalf("expected ParseMessage to succeed")
	}
	if rec.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", rec.Symbol)
	}
	if rec.Type != bus.DataTypeTicker {
		t.Errorf("Type = %q, want TICKER", rec.Type)
	}
	if rec.Timestamp != 1700000000000 {
		t.Errorf("Timestamp = %d, want 1700000000000", rec.Timestamp)
	}
	if rec.ReceivedAt <= 0 {
		t.Errorf("expected ReceivedAt to be set")
	}
}

func TestParseMessageMalformedJSON(t *testing.T) {
	_, ok := ParseMessage([]byte(`not json`))
	if ok {
		t.Fatalf("expected malformed JSON to fail parsing")
	}
}

func TestParseMessageMissingStream(t *testing.T) {
	_, ok := ParseMessage([]byte(`{"data":{"s":"BTCUSDT"}}`))
	if ok {
		t.Fatalf("expected a frame with no stream to fail parsing")
	}
}

func TestDataTypeFromStreamVariants(t *testing.T) {
	cases := map[string]bus.DataType{
		"btcusdt@trade":    bus.DataTypeTrade,
		"btcusdt@aggTrade": bus.DataTypeTrade,
		"btcusdt@ticker":   bus.DataTypeTicker,
		"btcusdt@depth":    bus.DataTypeDepth,
		"btcusdt@kline_1m": bus.DataTypeKline,
		"btcusdt@unknown":  bus.DataTypeUnknown,
	}
	for stream, want := range cases {
		if got := dataTypeFromStream(stream); got != want {
			t.Errorf("dataTypeFromStream(%q) = %q, want %q", stream, got, want)
		}
	}
}
