package random

import (
	"errors"
	"testing"
)

func TestResolveSeedPrefersRequested(t *testing.T) {
	requested := uint32(0)
	seed, source, err := ResolveSeed(&requested, func() (uint32, error) {
		t.Fatal("generator should not run")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seed != 0 || source != SeedSourceClient {
		t.Fatalf("seed %d source %s, want 0 client", seed, source)
	}
}

func TestResolveSeedGenerates(t *testing.T) {
	seed, source, err := ResolveSeed(nil, func() (uint32, error) { return 99, nil })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seed != 99 || source != SeedSourceGenerated {
		t.Fatalf("seed %d source %s, want 99 generated", seed, source)
	}

	boom := errors.New("entropy unavailable")
	if _, _, err := ResolveSeed(nil, func() (uint32, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestNewSeed(t *testing.T) {
	if _, err := NewSeed(); err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if _, source, err := ResolveSeed(nil, nil); err != nil || source != SeedSourceGenerated {
		t.Fatalf("default generator: source %s err %v", source, err)
	}
}
