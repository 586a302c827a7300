/*
	Package export writes extracted surface vertices as point clouds.
*/
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/kernel"
)

// Format is a point cloud file format.
type Format uint8

const (
	FormatUnknown Format = iota
	PLY
	GLB
)

func (f Format) String() string {
	switch f {
	case PLY:
		return "ply"
	case GLB:
		return "glb"
	default:
		return "unknown format"
	}
}

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		return PLY
	case ".glb":
		return GLB
	default:
		return FormatUnknown
	}
}

// Write writes vertices in the given format.
func Write(w io.Writer, verts *kernel.Vertices, format Format) error {
	switch format {
	case PLY:
		return WritePLY(w, verts)
	case GLB:
		return WriteGLB(w, verts)
	default:
		return fmt.Errorf("cannot export vertices as %s", format)
	}
}

// SaveFile writes vertices to a file whose extension selects the format.
func SaveFile(path string, verts *kernel.Vertices) error {
	format := FormatFromPath(path)
	if format == FormatUnknown {
		return fmt.Errorf("unknown point cloud extension for %q, expected .ply or .glb", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, verts, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	core.Infof("Wrote %d vertices to %s (%s)\n", verts.Len(), path, format)
	return nil
}

// WritePLY writes an ASCII PLY file with a single vertex element.
func WritePLY(w io.Writer, verts *kernel.Vertices) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment tsdf surface vertices\n")
	fmt.Fprintf(bw, "element vertex %d\n", verts.Len())
	fmt.Fprintf(bw, "property float x\nproperty float y\nproperty float z\nend_header\n")
	for i := 0; i < verts.Len(); i++ {
		if _, err := fmt.Fprintf(bw, "%g %g %g\n", verts.X[i], verts.Y[i], verts.Z[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Document returns a glTF document holding the vertices as one POINTS primitive.
func Document(verts *kernel.Vertices) *gltf.Document {
	positions := make([][3]float32, verts.Len())
	for i := range positions {
		positions[i] = verts.Vertex(i)
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "tsdf surface vertices"
	posAccessor := modeler.WritePosition(doc, positions)
	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
		},
		Mode: gltf.PrimitivePoints,
	}
	doc.Meshes = []*gltf.Mesh{{Name: "SurfaceVertices", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))
	return doc
}

// WriteGLB writes a binary glTF file with the vertices as points.
func WriteGLB(w io.Writer, verts *kernel.Vertices) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(Document(verts))
}
