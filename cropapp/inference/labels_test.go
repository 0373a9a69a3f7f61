package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Labels
		wantErr bool
	}{
		{"array", `["healthy", "blight", "rust"]`, Labels{"healthy", "blight", "rust"}, false},
		{"index object", `{"1": "blight", "0": "healthy", "2": "rust"}`, Labels{"healthy", "blight", "rust"}, false},
		{"empty array", `[]`, nil, true},
		{"empty object", `{}`, nil, true},
		{"sparse object", `{"0": "a", "5": "b"}`, nil, true},
		{"non numeric key", `{"zero": "a"}`, nil, true},
		{"not json", `healthy,blight`, nil, true},
		{"wrong element type", `[1, 2, 3]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabels([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label_map.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Tomato___healthy","Tomato___Late_blight"]`), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, Labels{"Tomato___healthy", "Tomato___Late_blight"}, labels)
	assert.Equal(t, []string{"Tomato___healthy"}, labels.Head(1))
	assert.Len(t, labels.Head(10), 2)

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
