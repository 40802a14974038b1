package pathfinder

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"io"
	"os"

	"epidemsim/internal/errs"
	"epidemsim/internal/grid"
)

// gobTable mirrors Table's exported fields so that a freshly built
// pathfinder round-trips through Save/Load into identical lookup tables.
// The encoded bytes are not stable across saves, since gob writes maps in
// iteration order.
type gobTable struct {
	CellPath    map[grid.Cell][]grid.Cell
	Anchor      map[grid.Cell]grid.Cell
	TransitPath map[transitKey][]grid.Cell
}

// Save serializes the table as gob, gzip-compressed, to path.
func (t *Table) Save(path string) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(gobTable{CellPath: t.CellPath, Anchor: t.Anchor, TransitPath: t.TransitPath}); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "encoding pathfinder table: %v", err)
	}
	if err := gz.Close(); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "closing gzip stream: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "writing pathfinder cache %s: %v", path, err)
	}
	return nil
}

// Load deserializes a pathfinder table previously written by Save.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadMap, "opening pathfinder cache %s: %v", path, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadMap, "reading gzip header of %s: %v", path, err)
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadMap, "decompressing pathfinder cache %s: %v", path, err)
	}
	var gt gobTable
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&gt); err != nil {
		return nil, errs.Wrap(errs.ErrBadMap, "decoding pathfinder cache %s: %v", path, err)
	}
	return &Table{CellPath: gt.CellPath, Anchor: gt.Anchor, TransitPath: gt.TransitPath}, nil
}
