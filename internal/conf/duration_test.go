package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration Duration
		encoded  string
	}{
		{"zero", Duration(0), `"0s"`},
		{"tick interval", Duration(5 * time.Minute), `"5m0s"`},
		{"rate limit", Duration(time.Hour), `"1h0m0s"`},
		{"shutdown grace", Duration(10 * time.Second), `"10s"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := json.Marshal(tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, string(b))

			var d Duration
			require.NoError(t, json.Unmarshal(b, &d))
			assert.Equal(t, tt.duration, d)
		})
	}
}

func TestDurationUnmarshalJSONVariants(t *testing.T) {
	t.Parallel()

	// Numbers are nanoseconds, null resets.
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`30000000000`), &d))
	assert.Equal(t, Duration(30*time.Second), d)

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Equal(t, Duration(0), d)

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	type engine struct {
		TickInterval Duration `yaml:"tick_interval"`
	}

	original := engine{TickInterval: Duration(5 * time.Minute)}
	b, err := yaml.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(b), "5m0s")

	var decoded engine
	require.NoError(t, yaml.Unmarshal(b, &decoded))
	assert.Equal(t, original.TickInterval, decoded.TickInterval)
}

func TestDurationYAMLAcceptsBareNanoseconds(t *testing.T) {
	t.Parallel()

	type engine struct {
		TickInterval Duration `yaml:"tick_interval"`
	}

	var decoded engine
	require.NoError(t, yaml.Unmarshal([]byte("tick_interval: 300000000000"), &decoded))
	assert.Equal(t, Duration(5*time.Minute), decoded.TickInterval)

	assert.Error(t, yaml.Unmarshal([]byte("tick_interval: soon"), &decoded))
}

// TestDurationDecodeHook drives the hook the way viper does when decoding
// the settings tree.
func TestDurationDecodeHook(t *testing.T) {
	t.Parallel()

	type engine struct {
		TickInterval  Duration `mapstructure:"tick_interval"`
		RateLimit     Duration `mapstructure:"default_rate_limit"`
		ShutdownGrace Duration `mapstructure:"shutdown_grace"`
	}

	var out engine
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DurationDecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{
		"tick_interval":      "5m",
		"default_rate_limit": int64(time.Hour),
		"shutdown_grace":     float64(10 * time.Second),
	}))
	assert.Equal(t, Duration(5*time.Minute), out.TickInterval)
	assert.Equal(t, Duration(time.Hour), out.RateLimit)
	assert.Equal(t, Duration(10*time.Second), out.ShutdownGrace)

	require.Error(t, dec.Decode(map[string]any{"tick_interval": "every so often"}))
}

func TestDurationStd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Minute, Duration(5*time.Minute).Std())
}
