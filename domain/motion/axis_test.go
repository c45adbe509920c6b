package motion

import (
	"errors"
	"testing"
)

func TestParseAxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    []Axis
		wantErr bool
	}{
		{"XYZ", []Axis{X, Y, Z}, false},
		{"xz", []Axis{X, Z}, false},
		{"", []Axis{}, false},
		{"ZY", []Axis{Z, Y}, false},
		{"XA", nil, true},
		{"E", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAxes(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAxis) {
					t.Fatalf("ParseAxes(%q) error = %v, want ErrInvalidAxis", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAxes(%q) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseAxes(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseAxes(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPartial(t *testing.T) {
	t.Parallel()

	var p Partial
	if !p.IsEmpty() {
		t.Error("zero Partial should be empty")
	}

	p.Set(X, 1.5)
	p.Set(Z, -2)

	if p.IsEmpty() {
		t.Error("Partial with X and Z should not be empty")
	}
	if !p.Has(X) || p.Has(Y) || !p.Has(Z) {
		t.Errorf("Has() = %v/%v/%v, want true/false/true", p.Has(X), p.Has(Y), p.Has(Z))
	}
	if p.ValueOrZero(Y) != 0 {
		t.Errorf("ValueOrZero(Y) = %v, want 0", p.ValueOrZero(Y))
	}
	if got := p.String(); got != "X=1.500000 Z=-2.000000" {
		t.Errorf("String() = %q", got)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	pos := Position{10, 20, 30}
	p := Select(pos, []Axis{Y, Z})

	if p.X != nil {
		t.Error("X should be undefined")
	}
	if *p.Y != 20 || *p.Z != 30 {
		t.Errorf("Select() = %s, want Y=20 Z=30", p)
	}
}
