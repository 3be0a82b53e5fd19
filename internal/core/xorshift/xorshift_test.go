package xorshift

import "testing"

func TestNew_ZeroSeedIsReplaced(t *testing.T) {
	src := New(0)
	if src.State() != ZeroSeedReplacement {
		t.Fatalf("state = %#x, want %#x", src.State(), ZeroSeedReplacement)
	}
	if src.Next() == 0 {
		t.Fatal("zero-seeded source produced zero")
	}
}

func TestNext_KnownSequence(t *testing.T) {
	// x=1: 1^(1<<13)=8193; 8193^(8193>>17)=8193; 8193^(8193<<5)=270369.
	src := New(1)
	if got := src.Next(); got != 270369 {
		t.Fatalf("first draw = %d, want 270369", got)
	}
	if src.State() != 270369 {
		t.Fatalf("state = %d, want 270369", src.State())
	}
}

func TestNext_MatchesReference(t *testing.T) {
	ref := func(x uint32) uint32 {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		return x
	}
	src := New(2463534242)
	want := uint32(2463534242)
	for i := 0; i < 1000; i++ {
		want = ref(want)
		if got := src.Next(); got != want {
			t.Fatalf("draw %d = %d, want %d", i, got, want)
		}
	}
}

func TestUniform_Range(t *testing.T) {
	seeds := []uint32{1, 2, 42, 0xdeadbeef, 0xffffffff}
	for _, seed := range seeds {
		src := New(seed)
		for i := 0; i < 100000; i++ {
			u := src.Uniform()
			if u < 0 || u >= 1 {
				t.Fatalf("seed %d draw %d: uniform = %v out of [0,1)", seed, i, u)
			}
		}
	}
}

func TestUniform_Determinism(t *testing.T) {
	a := New(12345)
	b := New(12345)
	for i := 0; i < 10000; i++ {
		if x, y := a.Uniform(), b.Uniform(); x != y {
			t.Fatalf("draw %d diverged: %v != %v", i, x, y)
		}
	}
}

func TestUniform_DifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("different seeds produced identical sequences")
	}
}

func TestDerive(t *testing.T) {
	if got := Derive(99, 0); got != 99 {
		t.Fatalf("stream 0 = %d, want 99", got)
	}
	seen := map[uint32]int{}
	for stream := 0; stream < 64; stream++ {
		s := Derive(7, stream)
		if s == 0 {
			t.Fatalf("stream %d derived zero seed", stream)
		}
		if prev, ok := seen[s]; ok {
			t.Fatalf("streams %d and %d share seed %d", prev, stream, s)
		}
		seen[s] = stream
	}
	if Derive(7, 3) != Derive(7, 3) {
		t.Fatal("derive is not deterministic")
	}
}
