package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"1024B", 1024, false},
		{"1024b", 1024, false},
		{"1Ki", KiB, false},
		{"1KiB", KiB, false},
		{"100Mi", 100 * MiB, false},
		{"100MiB", 100 * MiB, false},
		{"1Gi", GiB, false},
		{"1Ti", TiB, false},
		{"1K", KB, false},
		{"1KB", KB, false},
		{"100MB", 100 * MB, false},
		{"1G", GB, false},
		{"1TB", TB, false},
		{"1gi", GiB, false},
		{"1GI", GiB, false},
		{"  1Gi", GiB, false},
		{"1Gi  ", GiB, false},
		{"1 Gi", GiB, false},
		{"1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"0.5Gi", GiB / 2, false},

		{"", 0, true},
		{"   ", 0, true},
		{"1Xi", 0, true},
		{"1Pi", 0, true},
		{"-1Gi", 0, true},
		{"Gi", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, b := range []ByteSize{0, 1, 1000, KiB, 3 * KiB, 64 * MiB, 2 * GiB, 5 * TiB, 1536} {
		text, err := b.MarshalText()
		require.NoError(t, err)

		var back ByteSize
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, b, back, "via %q", text)
	}

	text, _ := (64 * MiB).MarshalText()
	assert.Equal(t, "64Mi", string(text))
	text, _ = ByteSize(1000).MarshalText()
	assert.Equal(t, "1000", string(text))
}

func TestYAML(t *testing.T) {
	type cfg struct {
		Size ByteSize `yaml:"size"`
	}
	out, err := yaml.Marshal(cfg{Size: 32 * MiB})
	require.NoError(t, err)
	assert.Equal(t, "size: 32Mi\n", string(out))

	var in cfg
	require.NoError(t, yaml.Unmarshal([]byte("size: 1.5Gi\n"), &in))
	assert.Equal(t, ByteSize(1.5*float64(GiB)), in.Size)
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "2.00KiB", (2 * KiB).String())
	assert.Equal(t, "100.00MiB", (100 * MiB).String())
	assert.Equal(t, "1.50GiB", ByteSize(1.5*float64(GiB)).String())
	assert.Equal(t, "2.00TiB", (2 * TiB).String())

	assert.Equal(t, "0B", Human(-5))
	assert.Equal(t, "1.00KiB", Human(1024))
}
