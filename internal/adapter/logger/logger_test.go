package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("order_created", "Order created", "req-1", map[string]interface{}{"order_id": "o-1"})
	l.Error("db_error", "Insert failed", "", nil, errors.New("boom"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}

	first := entries[0].ContextMap()
	if first["action"] != "order_created" || first["request_id"] != "req-1" {
		t.Errorf("unexpected fields %v", first)
	}
	details, ok := first["details"].(map[string]interface{})
	if !ok || details["order_id"] != "o-1" {
		t.Errorf("unexpected details %v", first["details"])
	}

	second := entries[1].ContextMap()
	if second["error"] != "boom" {
		t.Errorf("error field = %v", second["error"])
	}
	if _, ok := second["request_id"]; ok {
		t.Errorf("empty request id should be omitted")
	}
}
