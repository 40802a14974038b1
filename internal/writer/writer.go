// Package writer persists one run's output artifact: the agents/timesteps/
// virus datasets plus the agent_info table, as a single gzip-compressed
// HDF5 file (the Go analogue of the source's PyTables output). Both the
// launcher's streamed pipeline and the batch direct-write path append
// through the same Writer and call Finalize once at run completion.
package writer

import (
	"reflect"

	"epidemsim/internal/errs"
	"gonum.org/v1/hdf5"
)

// AgentInfoRow is one row of the agent_info table, matching the original's
// PyTables column layout.
type AgentInfoRow struct {
	Age             int8
	Sex             [1]byte
	LongCovid       bool
	PreventionIndex float32
	Mask            [10]byte
	Vax             [10]byte
	Infected        bool
	Hospitalized    bool
	Deceased        bool
	Capacity        int16
}

// NewAgentInfoRow packs loose field values into the fixed-width row layout
// HDF5 compound types require.
func NewAgentInfoRow(age int, sex string, longCovid bool, preventionIndex float64, mask, vax string, infected, hospitalized, deceased bool, capacity int) AgentInfoRow {
	row := AgentInfoRow{
		Age:             int8(age),
		LongCovid:       longCovid,
		PreventionIndex: float32(preventionIndex),
		Infected:        infected,
		Hospitalized:    hospitalized,
		Deceased:        deceased,
		Capacity:        int16(capacity),
	}
	if len(sex) > 0 {
		row.Sex[0] = sex[0]
	}
	copy(row.Mask[:], mask)
	copy(row.Vax[:], vax)
	return row
}

// Writer accumulates one run's frames in memory and flushes the full
// artifact on Finalize. save_verbose controls whether the virus dataset is
// written at all (readers must tolerate its absence).
type Writer struct {
	path        string
	saveVerbose bool

	timestamps []float64
	agents     [][4]int16 // flattened (iter*nAgents + agent)
	nAgents    int
	virus      [][]int16

	closed bool
}

// New creates a writer for the artifact at path.
func New(path string, saveVerbose bool) *Writer {
	return &Writer{path: path, saveVerbose: saveVerbose}
}

// Append records one iteration's frame. frame has one entry per agent,
// ordered consistently across every call. virus is ignored unless
// save_verbose was requested.
func (w *Writer) Append(timestamp int64, frame [][4]int16, virus []int16) {
	w.timestamps = append(w.timestamps, float64(timestamp))
	w.nAgents = len(frame)
	w.agents = append(w.agents, frame...)
	if w.saveVerbose {
		w.virus = append(w.virus, virus)
	}
}

// Finalize writes the accumulated frames plus the agent_info table as a
// single compressed HDF5 file and closes it.
func (w *Writer) Finalize(agentInfo []AgentInfoRow, floorShape [3]int) error {
	f, err := hdf5.CreateFile(w.path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "creating artifact %s: %v", w.path, err)
	}
	defer f.Close()

	nIter := len(w.timestamps)

	if err := writeDataset(f, "timesteps", []uint{uint(nIter)}, w.timestamps); err != nil {
		return err
	}
	if err := writeDataset(f, "agents", []uint{uint(nIter), uint(w.nAgents), 4}, flattenAgents(w.agents)); err != nil {
		return err
	}
	if w.saveVerbose {
		h, wd, fl := floorShape[0], floorShape[1], floorShape[2]
		if err := writeDataset(f, "virus", []uint{uint(nIter), uint(h), uint(wd), uint(fl)}, flattenVirus(w.virus)); err != nil {
			return err
		}
	}
	if err := writeCompound(f, "agent_info", agentInfo); err != nil {
		return err
	}

	w.closed = true
	return nil
}

// writeDataset creates a gzip-compressed dataset of the given shape and
// writes data into it in one pass.
func writeDataset(f *hdf5.File, name string, dims []uint, data interface{}) error {
	dspace, err := hdf5.CreateSimpleDataspace(dims, dims)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "dataspace %s: %v", name, err)
	}
	defer dspace.Close()

	dtype, err := hdf5.NewDatatypeFromValue(data)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "datatype %s: %v", name, err)
	}

	pl, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "proplist %s: %v", name, err)
	}
	defer pl.Close()
	if err := pl.SetChunk(chunkDims(dims)); err == nil {
		_ = pl.SetDeflate(6)
	}

	dset, err := f.CreateDatasetWith(name, dtype, dspace, pl)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "creating dataset %s: %v", name, err)
	}
	defer dset.Close()

	if err := dset.Write(data); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "writing dataset %s: %v", name, err)
	}
	return nil
}

// writeCompound writes the agent_info table as a one-dimensional dataset of
// a compound (struct) HDF5 type, HDF5's native analogue of a PyTables row.
func writeCompound(f *hdf5.File, name string, rows []AgentInfoRow) error {
	dims := []uint{uint(len(rows))}
	dspace, err := hdf5.CreateSimpleDataspace(dims, dims)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "dataspace %s: %v", name, err)
	}
	defer dspace.Close()

	dtype, err := hdf5.NewDatatypeFromValue(reflect.Zero(reflect.TypeOf(AgentInfoRow{})).Interface())
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "datatype %s: %v", name, err)
	}

	dset, err := f.CreateDataset(name, dtype, dspace)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "creating dataset %s: %v", name, err)
	}
	defer dset.Close()

	if err := dset.Write(rows); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "writing dataset %s: %v", name, err)
	}
	return nil
}

// chunkDims picks a chunk shape equal to the full extent on every axis
// except the leading (iteration) axis, which chunks one row at a time.
func chunkDims(dims []uint) []uint {
	chunk := make([]uint, len(dims))
	copy(chunk, dims)
	if len(chunk) > 0 && chunk[0] > 1 {
		chunk[0] = 1
	}
	if chunk[0] == 0 {
		chunk[0] = 1
	}
	return chunk
}

func flattenAgents(agents [][4]int16) []int16 {
	out := make([]int16, 0, len(agents)*4)
	for _, a := range agents {
		out = append(out, a[0], a[1], a[2], a[3])
	}
	return out
}

func flattenVirus(frames [][]int16) []int16 {
	var out []int16
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}
