package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecimalField(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123.45", "123.45"},
		{"  10 ", "10"},
		{"", "0"},
		{"not-a-number", "0"},
		{"-5.5", "-5.5"},
	}
	for _, tc := range cases {
		got := DecimalField(tc.in)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("DecimalField(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestBalanceResponseAmount(t *testing.T) {
	var nilResp *BalanceResponse
	if !nilResp.Amount().IsZero() {
		t.Error("nil response should parse to zero")
	}
	r := &BalanceResponse{Balance: "1500.25"}
	if !r.Amount().Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("Amount = %s", r.Amount())
	}
}

func TestMockClientErrorInjection(t *testing.T) {
	m := NewMockClient()
	m.ErrorOnNext["GetBalance"] = errTest

	if _, err := m.GetBalance(context.Background(),"0xAAAA11111111111111", "USDC"); err == nil {
		t.Fatal("injected error should surface")
	}
	// one-shot: the next call succeeds
	if _, err := m.GetBalance(context.Background(),"0xAAAA11111111111111", "USDC"); err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
	if m.CallCount("GetBalance") != 2 {
		t.Errorf("call count = %d, want 2", m.CallCount("GetBalance"))
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "test error" }
