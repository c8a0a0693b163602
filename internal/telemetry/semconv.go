package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys shared across connmgr, adapter,
// publisher, integration, and registry instruments.
const (
	// AttrExchange identifies the venue (e.g. "binance").
	AttrExchange = attribute.Key("exchange")
	// AttrInstance identifies the Adapter Integration instance.
	AttrInstance = attribute.Key("instance")
	// AttrSymbol is the instrument symbol (e.g. "BTCUSDT").
	AttrSymbol = attribute.Key("symbol")
	// AttrDataType is the canonical market-data type (trade, orderbook, ticker, ...).
	AttrDataType = attribute.Key("data_type")
	// AttrStream is the exchange-specific stream name.
	AttrStream = attribute.Key("stream")
	// AttrTopic is the publisher topic a record was routed to.
	AttrTopic = attribute.Key("topic")
	// AttrConnectionState is the Connection Manager's current state.
	AttrConnectionState = attribute.Key("connection.state")
	// AttrOperation labels a named operation (connect, reconnect, subscribe, publish, ...).
	AttrOperation = attribute.Key("operation")
	// AttrResult labels the outcome of an operation (success, failure).
	AttrResult = attribute.Key("result")
	// AttrEnvironment is the deployment environment.
	AttrEnvironment = attribute.Key("environment")
	// AttrErrorCode is the errs.Code of a classified failure.
	AttrErrorCode = attribute.Key("error.code")
)

// ConnectionAttributes labels connection-lifecycle instruments.
func ConnectionAttributes(exchange, instance, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrExchange.String(exchange),
		AttrInstance.String(instance),
		AttrConnectionState.String(state),
		AttrEnvironment.String(Environment()),
	}
}

// RecordAttributes labels per-record counters (received, dropped, published).
func RecordAttributes(exchange, symbol, dataType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrExchange.String(exchange),
		AttrSymbol.String(symbol),
		AttrDataType.String(dataType),
		AttrEnvironment.String(Environment()),
	}
}

// OperationResultAttributes labels a completed operation with its outcome.
func OperationResultAttributes(operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrOperation.String(operation),
		AttrResult.String(result),
		AttrEnvironment.String(Environment()),
	}
}
