package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintInspection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []int
		outputs [][]int
		wantErr bool
		want    []string
	}{
		{"leaf model", []int{1, 200, 200, 3}, [][]int{{1, 3}}, false, []string{"Outputs: 1", "[0] [1 3]", "compatible, 3 classes"}},
		{"flat output", []int{1, 200, 200, 3}, [][]int{{3}}, false, []string{"[0] [3]", "compatible, 3 classes"}},
		{"wrong input", []int{1, 224, 224, 3}, [][]int{{1, 3}}, true, []string{"incompatible"}},
		{"tabular model", []int{1, 4}, [][]int{{1, 1}}, true, []string{"incompatible"}},
		{
			"two outputs", []int{1, 200, 200, 3}, [][]int{{1, 3}, {1, 128}}, true,
			[]string{"Outputs: 2", "[0] [1 3]", "[1] [1 128]", "has 2 outputs, expected 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			err := printInspection(&buf, "leaf.tflite", tt.input, tt.outputs)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			out := buf.String()
			assert.Contains(t, out, "Model:   leaf.tflite")
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}
