package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHarvestConfigClamps(t *testing.T) {
	assert.Equal(t, NewHarvestConfig("kos", 10, 5), NewHarvestConfig("kos", 999, 5))
	assert.Equal(t, NewHarvestConfig("kos", 2, 1), NewHarvestConfig("kos", 2, 0))
	assert.Equal(t, NewHarvestConfig("kos", 1, 20), NewHarvestConfig("kos", -3, 100))

	cfg := NewHarvestConfig("rumah", 3, 7)
	assert.Equal(t, HarvestConfig{Query: "rumah", Pages: 3, Workers: 7}, cfg)
}

func TestDecodeHarvestRequestDefaults(t *testing.T) {
	req, err := DecodeHarvestRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, HarvestConfig{Query: DefaultQuery, Pages: DefaultPages, Workers: DefaultWorkers}, req.Config())

	req, err = DecodeHarvestRequest([]byte(`{"query": "   "}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultQuery, req.Config().Query)
}

func TestDecodeHarvestRequestCoercesNumbers(t *testing.T) {
	req, err := DecodeHarvestRequest([]byte(`{"query":"apartemen","pages":"3","workers":4.9}`))
	require.NoError(t, err)
	assert.Equal(t, HarvestConfig{Query: "apartemen", Pages: 3, Workers: 4}, req.Config())

	req, err = DecodeHarvestRequest([]byte(`{"pages":999,"workers":0}`))
	require.NoError(t, err)
	assert.Equal(t, HarvestConfig{Query: DefaultQuery, Pages: MaxPages, Workers: MinWorkers}, req.Config())
}

func TestDecodeHarvestRequestSaturatesHugeNumbers(t *testing.T) {
	tests := []struct {
		body    string
		pages   int
		workers int
	}{
		{`{"pages":1e300,"workers":-1e300}`, MaxPages, MinWorkers},
		{`{"pages":1e400,"workers":1e400}`, MaxPages, MaxWorkers},
		{`{"pages":"99999999999999999999","workers":" 7 "}`, MaxPages, 7},
		{`{"pages":99999999999999999999,"workers":-99999999999999999999}`, MaxPages, MinWorkers},
	}
	for _, tt := range tests {
		req, err := DecodeHarvestRequest([]byte(tt.body))
		require.NoError(t, err, tt.body)
		assert.Equal(t, HarvestConfig{Query: DefaultQuery, Pages: tt.pages, Workers: tt.workers}, req.Config(), tt.body)
	}
}

func TestDecodeHarvestRequestRejectsBadInput(t *testing.T) {
	for _, body := range []string{
		`{"pages":"many"}`,
		`{"pages":"NaN"}`,
		`{"pages":"Inf"}`,
		`{"workers":"-Infinity"}`,
		`{"pages":"3.5"}`,
		`{"pages":"1e3"}`,
		`{"workers":true}`,
		`{"pages":[1]}`,
		`not json`,
		`{"query":`,
	} {
		_, err := DecodeHarvestRequest([]byte(body))
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("body %s: expected ErrInvalidRequest, got %v", body, err)
		}
	}
}
