package models

import "testing"

// TestBaseName verifies the artifact naming convention.
func TestBaseName(t *testing.T) {
	cases := []struct {
		combo Combination
		want  string
	}{
		{Combination{Threshold: 120, Reduction: 0.5}, "model_th120_red50"},
		{Combination{Threshold: 0, Reduction: 0}, "model_th0_red0"},
		{Combination{Threshold: 250, Reduction: 0.99}, "model_th250_red99"},
		{Combination{Threshold: 127.5, Reduction: 0.9}, "model_th127.5_red90"},
	}
	for _, c := range cases {
		if got := c.combo.BaseName(); got != c.want {
			t.Errorf("BaseName(%+v) = %q, expected %q", c.combo, got, c.want)
		}
	}
}

// TestReductionPercent verifies fraction to percent conversion.
func TestReductionPercent(t *testing.T) {
	cases := map[float64]int{0: 0, 0.5: 50, 0.9: 90, 0.99: 99}
	for r, want := range cases {
		c := Combination{Reduction: r}
		if got := c.ReductionPercent(); got != want {
			t.Errorf("ReductionPercent(%g) = %d, expected %d", r, got, want)
		}
	}
}
