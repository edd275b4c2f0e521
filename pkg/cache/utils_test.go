package cache

import "testing"

func TestGenerateKeyWithParams(t *testing.T) {
	s := 42.5
	var none *float64
	cases := []struct {
		got, want string
	}{
		{GenerateKeyWithParams("analyze", "BTCUSDT", "5"), "analyze:BTCUSDT:5"},
		{GenerateKeyWithParams("analyze", "BTCUSDT", "5", &s), "analyze:BTCUSDT:5:42.5"},
		{GenerateKeyWithParams("analyze", "BTCUSDT", "5", none), "analyze:BTCUSDT:5:-"},
		{GenerateKeyWithParams("candles", "ETH", 150, nil), "candles:ETH:150:-"},
		{GenerateKeyWithParams("strategies"), "strategies"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("want %q, got %q", c.want, c.got)
		}
	}
}
