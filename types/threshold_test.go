package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredSignatures(t *testing.T) {
	tests := []struct {
		name      string
		eligible  int
		threshold uint8
		minGlobal int
		want      int
	}{
		{"rounds up", 5, 60, 1, 3},
		{"exact percentage", 10, 60, 1, 6},
		{"one participant", 1, 51, 1, 1},
		{"global floor wins", 2, 51, 3, 3},
		{"per-market threshold wins", 20, 75, 3, 15},
		{"no eligible participants falls to floor", 0, 60, 3, 3},
		{"no eligible participants, floor of one", 0, 60, 1, 1},
		{"full consensus", 7, 99, 1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredSignatures(tt.eligible, tt.threshold, tt.minGlobal))
		})
	}
}
