package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "10"},
		{in: "10.5"},
		{in: "10.50"},
		{in: "10.500"},
		{in: "0.01"},
		{in: "10.005", wantErr: true},
		{in: "0.001", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidateAmount("amount", decimal.RequireFromString(tt.in))
			if tt.wantErr != (err != nil) {
				t.Fatalf("ValidateAmount(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateAmount(%s) error = %v, want ErrValidation", tt.in, err)
			}
		})
	}
}
