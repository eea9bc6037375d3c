package storage

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorLiteralNilForEmpty(t *testing.T) {
	require.Nil(t, vectorLiteral(nil))
	require.Nil(t, vectorLiteral([]float32{}))
}

func TestVectorLiteralLossless(t *testing.T) {
	in := []float32{0.123456789, -1, 0.000001, 3.1415927}
	lit := vectorLiteral(in)
	require.NotNil(t, lit)
	require.True(t, strings.HasPrefix(*lit, "["))
	require.True(t, strings.HasSuffix(*lit, "]"))

	parts := strings.Split(strings.Trim(*lit, "[]"), ",")
	require.Len(t, parts, len(in))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		require.NoError(t, err)
		require.Equal(t, in[i], float32(f), "component %d", i)
	}
}
