package wire

import "testing"

func TestUnitsPackUnpackRoundTrip(t *testing.T) {
	u := Units{DimSpace: 1, DimTime: -1, DimCount: 0, ScaleSpace: 3, ScaleTime: 0, ScaleCount: 6}
	got := UnpackUnits(u.Pack())
	if got != u {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, u)
	}
}

func TestUnitsEqual(t *testing.T) {
	a := Units{DimTime: 1, ScaleTime: 0}
	b := Units{DimTime: 1, ScaleTime: 0}
	c := Units{DimTime: 1, ScaleTime: 3}
	if !a.Equal(b) {
		t.Fatal("expected equal units to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected differently scaled units to compare unequal")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Len: 56, Type: 7, From: 3}
	buf := make([]byte, HeaderSize)
	PutHeader(buf, h)
	got := GetHeader(buf)
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
	}
}

func TestLegacyToCurrentBitExact(t *testing.T) {
	legacy := LegacyTimestamp{Sec: 1000, USec: 500000}
	cur := legacy.ToCurrent()
	if cur.Sec != 1000 || cur.NSec != 500000000 {
		t.Fatalf("nsec = usec*1000 violated: got %+v", cur)
	}
	back := cur.ToLegacy()
	if back != legacy {
		t.Fatalf("round-trip through current lost precision: got %+v want %+v", back, legacy)
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	c := Credential{Type: 1, Flags: 2, Extra: 3}
	b := PackCredential(c)
	if got := UnpackCredential(b[:]); got != c {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, c)
	}
}

func TestFloatScalarRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutFloat64(buf, 3.25)
	if v := Float64(buf); v != 3.25 {
		t.Fatalf("got %v want 3.25", v)
	}
	PutFloat32(buf[:4], 1.5)
	if v := Float32(buf[:4]); v != 1.5 {
		t.Fatalf("got %v want 1.5", v)
	}
}
