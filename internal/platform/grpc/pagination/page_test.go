package pagination

import "testing"

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 50, Max: 500}
	tests := []struct {
		in   int32
		want int
	}{
		{0, 50},
		{-3, 50},
		{10, 10},
		{900, 500},
	}
	for _, tt := range tests {
		if got := ClampPageSize(tt.in, cfg); got != tt.want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("ClampPageSize with empty config = %d, want 1", got)
	}
}

func TestOffsetTokens(t *testing.T) {
	if EncodeOffset(0) != "" {
		t.Fatal("offset zero should encode to empty token")
	}
	token := EncodeOffset(150)
	got, err := DecodeOffset(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 150 {
		t.Fatalf("offset = %d, want 150", got)
	}
	if got, err := DecodeOffset(""); err != nil || got != 0 {
		t.Fatalf("empty token = %d, %v", got, err)
	}
	for _, bad := range []string{"***", "bm9wZQ", EncodeOffset(1)[:2]} {
		if _, err := DecodeOffset(bad); err == nil {
			t.Fatalf("DecodeOffset(%q) expected error", bad)
		}
	}
}
