package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Encode(t *testing.T) {
	tests := []struct {
		params Params
		want   string
	}{
		{Params{Country: "Finland"}, "Finland"},
		{Params{Country: "Finland", Date: day(2024, 1, 3)}, "Finland;2024-01-03"},
		{Params{Country: "Finland", Date: day(2024, 1, 3), View: "WEEK"}, "Finland;2024-01-03;WEEK"},
		{Params{Country: "Sweden", View: "YTD"}, "Sweden;;YTD"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.Encode())

			decoded, err := DecodeParams(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.params, decoded)
		})
	}
}

func TestDecodeParams_Errors(t *testing.T) {
	for _, in := range []string{"", ";2024-01-03", "Finland;03.01.2024", "Finland;2024-01-03;WEEK;extra"} {
		_, err := DecodeParams(in)
		assert.Error(t, err, in)
	}
}
