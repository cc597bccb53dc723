package mathx

import "testing"

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{7, 2, 3},
		{-7, 2, -4},
		{7, -2, -4},
		{-7, -2, 3},
		{-8, 2, -4},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Errorf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(300, 0, 255); got != 255 {
		t.Fatalf("got %d", got)
	}
	if got := Clamp(-3, 0, 255); got != 0 {
		t.Fatalf("got %d", got)
	}
	if got := Clamp(5, 10, 0); got != 5 {
		t.Fatalf("swapped bounds: got %d", got)
	}
}
