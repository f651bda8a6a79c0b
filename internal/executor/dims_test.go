package executor

import (
	"testing"

	"github.com/argmaster/cssfinder/internal/model"
)

func TestDeduceDimensions(t *testing.T) {
	tests := []struct {
		name     string
		mode     model.Mode
		size     int
		depth    int
		quantity int
		wantErr  bool
	}{
		{name: "three qubits", mode: model.ModeFSnQd, size: 8, depth: 2, quantity: 3},
		{name: "two qutrits", mode: model.ModeFSnQd, size: 9, depth: 3, quantity: 2},
		{name: "single qudit", mode: model.ModeFSnQd, size: 7, depth: 7, quantity: 1},
		{name: "not a prime power", mode: model.ModeFSnQd, size: 12, wantErr: true},
		{name: "square biparte", mode: model.ModeSBiPa, size: 16, depth: 4, quantity: 4},
		{name: "uneven biparte", mode: model.ModeSBiPa, size: 6, depth: 2, quantity: 3},
		{name: "prime biparte", mode: model.ModeSBiPa, size: 5, depth: 5, quantity: 1},
		{name: "entangled 3-party needs pinning", mode: model.ModeG3PaE3qD, size: 27, wantErr: true},
		{name: "entangled 4-party needs pinning", mode: model.ModeG4PaE3qD, size: 81, wantErr: true},
		{name: "degenerate size", mode: model.ModeFSnQd, size: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			depth, quantity, err := deduceDimensions(tt.mode, tt.size)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("deduceDimensions(%v, %d) = (%d, %d), want error", tt.mode, tt.size, depth, quantity)
				}
				return
			}
			if err != nil {
				t.Fatalf("deduceDimensions(%v, %d): %v", tt.mode, tt.size, err)
			}
			if depth != tt.depth || quantity != tt.quantity {
				t.Errorf("deduceDimensions(%v, %d) = (%d, %d), want (%d, %d)",
					tt.mode, tt.size, depth, quantity, tt.depth, tt.quantity)
			}
		})
	}
}
