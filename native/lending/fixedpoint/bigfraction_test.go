package fixedpoint

import (
	"math/big"
	"testing"
)

func TestBigFractionReduceFoldsLittleEndianLimbs(t *testing.T) {
	b := BigFraction{7, 3, 1, 0}
	want := new(big.Int).SetUint64(7)
	want.Add(want, new(big.Int).Lsh(big.NewInt(3), 64))
	want.Add(want, new(big.Int).Lsh(big.NewInt(1), 128))
	if got := b.Scaled(); got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestBigFractionRoundTrip(t *testing.T) {
	rate, err := Parse("1.000123456789")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	limbs, err := NewBigFraction(rate)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if limbs[1] != 0 || limbs[2] != 0 || limbs[3] != 0 {
		t.Fatalf("a value near one should fit in the low limb, got %v", limbs)
	}
	if got := limbs.Reduce(); !got.Equal(rate) {
		t.Fatalf("expected %s, got %s", rate, got)
	}

	large := FromScaled(new(big.Int).Lsh(big.NewInt(5), 130))
	limbs, err = NewBigFraction(large)
	if err != nil {
		t.Fatalf("split large: %v", err)
	}
	if limbs[2] != 20 {
		t.Fatalf("expected 5<<2 in limb 2, got %v", limbs)
	}
	if got := limbs.Reduce(); !got.Equal(large) {
		t.Fatalf("large round trip mismatch: %s", got.Scaled())
	}
}

func TestBigFractionRejectsOutOfRange(t *testing.T) {
	if _, err := NewBigFraction(FromInt(-1)); err == nil {
		t.Fatal("expected negative value to be rejected")
	}
	tooLarge := FromScaled(new(big.Int).Lsh(big.NewInt(1), 256))
	if _, err := NewBigFraction(tooLarge); err == nil {
		t.Fatal("expected overflow to be rejected")
	}
	if !(BigFraction{}).IsZero() {
		t.Fatal("zero limbs should report zero")
	}
}
