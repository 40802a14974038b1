package writer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAccumulatesFramesInMemory(t *testing.T) {
	w := New("unused.h5", false)
	w.Append(1000, [][4]int16{{1, 2, 0, 0}, {3, 4, 0, 1}}, nil)
	w.Append(1001, [][4]int16{{1, 2, 0, 0}, {3, 5, 0, 1}}, nil)

	require.Equal(t, []float64{1000, 1001}, w.timestamps)
	require.Equal(t, 2, w.nAgents)
	require.Len(t, w.agents, 4)
}

func TestAppendSkipsVirusWhenNotVerbose(t *testing.T) {
	w := New("unused.h5", false)
	w.Append(0, [][4]int16{{0, 0, 0, 0}}, []int16{1, 2, 3})
	require.Empty(t, w.virus)
}

func TestAppendKeepsVirusWhenVerbose(t *testing.T) {
	w := New("unused.h5", true)
	w.Append(0, [][4]int16{{0, 0, 0, 0}}, []int16{1, 2, 3})
	require.Len(t, w.virus, 1)
	require.Equal(t, []int16{1, 2, 3}, w.virus[0])
}

func TestNewAgentInfoRowPacksFixedWidthFields(t *testing.T) {
	row := NewAgentInfoRow(41, "F", true, 0.875, "n95", "mrna", true, false, false, 12)
	require.EqualValues(t, 41, row.Age)
	require.Equal(t, byte('F'), row.Sex[0])
	require.True(t, row.LongCovid)
	require.InDelta(t, 0.875, row.PreventionIndex, 1e-6)
	require.Equal(t, "n95", trimNulls(row.Mask[:]))
	require.Equal(t, "mrna", trimNulls(row.Vax[:]))
	require.EqualValues(t, 12, row.Capacity)
}

func trimNulls(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}

func TestChunkDimsChunksLeadingAxis(t *testing.T) {
	require.Equal(t, []uint{1, 5, 4}, chunkDims([]uint{100, 5, 4}))
	require.Equal(t, []uint{1}, chunkDims([]uint{0}))
}
