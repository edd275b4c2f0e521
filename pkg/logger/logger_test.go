package logger

import (
	"errors"
	"testing"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestFieldKeyValues(t *testing.T) {
	cases := []struct {
		f     Field
		key   string
		value interface{}
	}{
		{String("symbol", "BTC"), "symbol", "BTC"},
		{Int("n", 3), "n", 3},
		{Float64("confidence", 81.5), "confidence", 81.5},
		{Error(errors.New("boom")), "error", "boom"},
		{Bool("hit", true), "hit", true},
		{Strings("tfs", []string{"1m", "5m"}), "tfs", "1m, 5m"},
	}
	for _, c := range cases {
		k, v := c.f.GetKeyValue()
		if k != c.key || v != c.value {
			t.Errorf("want %s=%v, got %s=%v", c.key, c.value, k, v)
		}
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop().With(String("component", "test"))
	l.Info("hello", Int("n", 1))
	l.Error("bad", Error(nil))
}
