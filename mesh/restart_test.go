package mesh

import (
	"bytes"
	"testing"

	"go.uber.org/zap"

	"github.com/amitseta90/athena/transport"
)

func fillForRestart(mb *MeshBlock) {
	m := mb.Mesh()
	data := mb.U.Data()
	for i := range data {
		data[i] = float64(mb.GID*100000+i) * 0.0625
	}
	if m.Magnetic {
		for _, a := range []interface{ Data() []float64 }{mb.B.X1, mb.B.X2, mb.B.X3} {
			d := a.Data()
			for i := range d {
				d[i] = float64(mb.GID*1000+i) * 0.125
			}
		}
	}
}

func TestRestartRoundTrip(t *testing.T) {
	par := params1D()
	par.Magnetic = true
	err := transport.Run(1, func(c *transport.Comm) error {
		m, err := NewMesh(par, c, zap.NewNop(), 0)
		if err != nil {
			return err
		}
		m.forEachBlock(func(mb *MeshBlock) { fillForRestart(mb) })
		m.Time, m.Dt, m.NCycle = 0.5, 0.01, 7

		var buf bytes.Buffer
		if err := m.WriteRestart(&buf); err != nil {
			return err
		}

		m2, err := NewMeshFromRestart(par, bytes.NewReader(buf.Bytes()), c, zap.NewNop(), 0)
		if err != nil {
			return err
		}
		if m2.NBTotal != m.NBTotal || m2.Time != 0.5 || m2.Dt != 0.01 || m2.NCycle != 7 {
			t.Fatalf("header mismatch: nbtotal=%d time=%g dt=%g ncycle=%d",
				m2.NBTotal, m2.Time, m2.Dt, m2.NCycle)
		}
		for i, loc := range m.LocList() {
			if m2.LocList()[i] != loc {
				t.Fatalf("loclist[%d] = %v, want %v", i, m2.LocList()[i], loc)
			}
		}

		orig := m.FirstBlock()
		for mb := m2.FirstBlock(); mb != nil; mb = mb.Next() {
			a, b := orig.U.Data(), mb.U.Data()
			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("block %d u[%d]: %g != %g", mb.GID, i, b[i], a[i])
				}
			}
			x, y := orig.B.X1.Data(), mb.B.X1.Data()
			for i := range x {
				if x[i] != y[i] {
					t.Fatalf("block %d bx[%d]: %g != %g", mb.GID, i, y[i], x[i])
				}
			}
			if mb.SizeInBytes() != orig.SizeInBytes() {
				t.Fatalf("block %d payload size changed", mb.GID)
			}
			orig = orig.Next()
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRestartRejectsTruncated(t *testing.T) {
	par := params1D()
	err := transport.Run(1, func(c *transport.Comm) error {
		m, err := NewMesh(par, c, zap.NewNop(), 0)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := m.WriteRestart(&buf); err != nil {
			return err
		}
		short := buf.Bytes()[:buf.Len()/2]
		if _, err := NewMeshFromRestart(par, bytes.NewReader(short), c, zap.NewNop(), 0); err == nil {
			t.Fatal("truncated restart must be rejected")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRestartArchiveRoundTrip(t *testing.T) {
	par := params1D()
	par.Magnetic = true
	err := transport.Run(1, func(c *transport.Comm) error {
		m, err := NewMesh(par, c, zap.NewNop(), 0)
		if err != nil {
			return err
		}
		m.forEachBlock(func(mb *MeshBlock) { fillForRestart(mb) })
		m.Time = 0.25

		var raw, arch bytes.Buffer
		if err := m.WriteRestart(&raw); err != nil {
			return err
		}
		if err := m.WriteRestartArchive(&arch); err != nil {
			return err
		}
		if arch.Len() == 0 {
			t.Fatal("archive is empty")
		}

		rd, err := OpenRestartArchive(bytes.NewReader(arch.Bytes()))
		if err != nil {
			return err
		}
		m2, err := NewMeshFromRestart(par, rd, c, zap.NewNop(), 0)
		if err != nil {
			return err
		}
		if m2.Time != 0.25 || m2.NBTotal != m.NBTotal {
			t.Fatalf("archive round trip lost state: time=%g nbtotal=%d", m2.Time, m2.NBTotal)
		}
		a := m.FirstBlock().U.Data()
		b := m2.FirstBlock().U.Data()
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("u[%d]: %g != %g", i, b[i], a[i])
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
