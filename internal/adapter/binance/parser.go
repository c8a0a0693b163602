// Package binance supplies the illustrative exchange-specific ParseFunc
// for the generic Adapter: Binance's combined-stream envelope
// { stream, data } keyed on "<symbol>@<type>" (spec.md §4.2, §8 scenario 5).
package binance

import (
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/coachpo/feedgate/internal/bus"
)

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type dataFields struct {
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
}

// dataTypeFromStream maps Binance's own per-channel suffix onto the
// canonical bus.DataType enum. Unknown suffixes map to DataTypeUnknown
// rather than failing the parse — the record is still structurally valid.
func dataTypeFromStream(stream string) bus.DataType {
	idx := strings.LastIndex(stream, "@")
	if idx < 0 || idx == len(stream)-1 {
		return bus.DataTypeUnknown
	}
	switch strings.ToLower(stream[idx+1:]) {
	case "trade", "aggtrade":
		return bus.DataTypeTrade
	case "ticker", "bookticker":
		return bus.DataTypeTicker
	case "depth", "depth5", "depth10", "depth20":
		return bus.DataTypeDepth
	default:
		if strings.HasPrefix(stream[idx+1:], "kline") {
			return bus.DataTypeKline
		}
		return bus.DataTypeUnknown
	}
}

func symbolFromStream(stream string) string {
	idx := strings.Index(stream, "@")
	if idx < 0 {
		return stream
	}
	return stream[:idx]
}

// ParseMessage implements adapter.ParseFunc for Binance's combined-stream
// wire format. A frame that isn't the expected { stream, data } shape, or
// whose JSON is malformed, yields (nil, false) rather than an error — per
// spec.md §4.2, invalid JSON is a parse failure surfaced as a null result.
func ParseMessage(frame []byte) (*bus.Record, bool) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, false
	}
	if strings.TrimSpace(env.Stream) == "" || len(env.Data) == 0 {
		return nil, false
	}

	var fields dataFields
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		return nil, false
	}

	symbol := strings.ToUpper(strings.TrimSpace(fields.Symbol))
	if symbol == "" {
		symbol = strings.ToUpper(symbolFromStream(env.Stream))
	}

	timestamp := fields.EventTime
	now := time.Now().UnixMilli()
	if timestamp <= 0 {
		timestamp = now
	}

	return &bus.Record{
		Symbol:     symbol,
		Type:       dataTypeFromStream(env.Stream),
		Timestamp:  timestamp,
		Data:       append([]byte(nil), env.Data...),
		ReceivedAt: now,
	}, true
}
