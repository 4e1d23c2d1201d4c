package engine

import (
	"math"
	"testing"
)

func TestBoxLengthsAnglesRoundTrip(t *testing.T) {
	tests := []struct {
		name               string
		a, b, c            float64
		alpha, beta, gamma float64
	}{
		{"cubic", 3, 3, 3, 90, 90, 90},
		{"rectangular", 2, 3, 4, 90, 90, 90},
		{"dodecahedron", 5, 5, 5, 60, 60, 90},
		{"octahedron", 4, 4, 4, 70.5288, 109.4712, 70.5288},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := BoxFromLengthsAngles(tt.a, tt.b, tt.c, tt.alpha, tt.beta, tt.gamma)
			a, b, c, al, be, ga := box.LengthsAngles()
			got := []float64{a, b, c, al, be, ga}
			want := []float64{tt.a, tt.b, tt.c, tt.alpha, tt.beta, tt.gamma}
			for i := range got {
				if math.Abs(got[i]-want[i]) > 1e-4 {
					t.Errorf("component %d: got %.5f, want %.5f", i, got[i], want[i])
				}
			}
		})
	}
}

func TestMinimumImage(t *testing.T) {
	box := Orthorhombic(2, 2, 2)
	d := box.MinimumImage(Vec3{1.9, -1.5, 0.2})
	want := Vec3{-0.1, 0.5, 0.2}
	for i := range d {
		if math.Abs(d[i]-want[i]) > 1e-12 {
			t.Fatalf("MinimumImage = %v, want %v", d, want)
		}
	}
}

func TestVolume(t *testing.T) {
	if v := Orthorhombic(2, 3, 4).Volume(); math.Abs(v-24) > 1e-12 {
		t.Errorf("Volume = %v, want 24", v)
	}
}
