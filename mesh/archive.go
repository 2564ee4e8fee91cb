package mesh

import (
	"bytes"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
)

// Restart archives wrap the restart stream in a zstd frame for long-term
// storage. The frame is decompressed wholesale before parsing, so the
// offset table inside refers to the uncompressed stream unchanged.

// WriteRestartArchive writes a compressed restart stream. Collective like
// WriteRestart; only rank 0 produces output.
func (m *Mesh) WriteRestartArchive(w io.Writer) error {
	var raw bytes.Buffer
	if err := m.WriteRestart(&raw); err != nil {
		return err
	}
	if m.Comm.Rank() != 0 {
		return nil
	}
	buf, err := zstd.CompressLevel(nil, raw.Bytes(), 1)
	if err != nil {
		return fmt.Errorf("mesh: compressing restart archive: %w", err)
	}
	_, err = w.Write(buf)
	return err
}

// OpenRestartArchive decompresses an archive into the plain restart stream
// accepted by NewMeshFromRestart.
func OpenRestartArchive(rd io.Reader) (io.Reader, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("mesh: reading restart archive: %w", err)
	}
	raw, err := zstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("mesh: decompressing restart archive: %w", err)
	}
	return bytes.NewReader(raw), nil
}
