package camera

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PrimeSenseDefault returns the intrinsics commonly assumed for 640x480
// PrimeSense and Kinect depth frames.
func PrimeSenseDefault() Intrinsics {
	return Intrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5}
}

const intrinsicSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["width", "height", "intrinsic_matrix"],
	"properties": {
		"width": {"type": "integer", "minimum": 1},
		"height": {"type": "integer", "minimum": 1},
		"intrinsic_matrix": {
			"type": "array",
			"items": {"type": "number"},
			"minItems": 9,
			"maxItems": 9
		}
	}
}`

var compiledIntrinsicSchema = jsonschema.MustCompileString("intrinsic.json", intrinsicSchema)

type intrinsicJSON struct {
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	IntrinsicMatrix [9]float64 `json:"intrinsic_matrix"`
}

// DecodeIntrinsicJSON reads a pinhole camera intrinsic document with a
// column-major "intrinsic_matrix".
func DecodeIntrinsicJSON(r io.Reader) (Intrinsics, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Intrinsics{}, err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return Intrinsics{}, err
	}
	if err := compiledIntrinsicSchema.Validate(v); err != nil {
		return Intrinsics{}, err
	}
	var doc intrinsicJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return Intrinsics{}, err
	}
	in := Intrinsics{
		Width:  doc.Width,
		Height: doc.Height,
		Fx:     doc.IntrinsicMatrix[0],
		Fy:     doc.IntrinsicMatrix[4],
		Cx:     doc.IntrinsicMatrix[6],
		Cy:     doc.IntrinsicMatrix[7],
	}
	return in, in.Validate()
}

// EncodeIntrinsicJSON writes intrinsics in the format read by DecodeIntrinsicJSON.
func EncodeIntrinsicJSON(w io.Writer, in Intrinsics) error {
	doc := intrinsicJSON{
		Width:           in.Width,
		Height:          in.Height,
		IntrinsicMatrix: [9]float64{in.Fx, 0, 0, 0, in.Fy, 0, in.Cx, in.Cy, 1},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(doc)
}

// ReadIntrinsicJSON reads intrinsics from a JSON file.
func ReadIntrinsicJSON(path string) (Intrinsics, error) {
	f, err := os.Open(path)
	if err != nil {
		return Intrinsics{}, err
	}
	defer f.Close()
	in, err := DecodeIntrinsicJSON(f)
	if err != nil {
		return Intrinsics{}, fmt.Errorf("bad intrinsic file %q: %v", path, err)
	}
	return in, nil
}

// TrajectoryFrame is one camera pose of a trajectory log.
type TrajectoryFrame struct {
	Meta [3]int

	// Pose is the camera-to-world transform as stored.
	Pose Extrinsics
}

// Extrinsic returns the world-to-camera transform used for integration.
func (f TrajectoryFrame) Extrinsic() (Extrinsics, error) {
	return f.Pose.Inverse()
}

// DecodeTrajectory reads a trajectory log: for each frame a line of three
// integers followed by four rows of a camera-to-world matrix.
func DecodeTrajectory(r io.Reader) ([]TrajectoryFrame, error) {
	var frames []TrajectoryFrame
	scanner := bufio.NewScanner(r)
	lineNum := 0
	nextLine := func() ([]string, bool) {
		for scanner.Scan() {
			lineNum++
			fields := strings.Fields(scanner.Text())
			if len(fields) != 0 {
				return fields, true
			}
		}
		return nil, false
	}
	for {
		fields, ok := nextLine()
		if !ok {
			break
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 metadata values, got %d", lineNum, len(fields))
		}
		var frame TrajectoryFrame
		for i, s := range fields {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad metadata %q", lineNum, s)
			}
			frame.Meta[i] = n
		}
		m := make([]float64, 0, 16)
		for row := 0; row < 4; row++ {
			fields, ok = nextLine()
			if !ok {
				return nil, fmt.Errorf("frame %d: truncated pose", len(frames))
			}
			if len(fields) != 4 {
				return nil, fmt.Errorf("line %d: expected 4 matrix values, got %d", lineNum, len(fields))
			}
			for _, s := range fields {
				val, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad matrix value %q", lineNum, s)
				}
				m = append(m, val)
			}
		}
		pose, err := NewExtrinsics(m)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %v", len(frames), err)
		}
		frame.Pose = pose
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// ReadTrajectory reads a trajectory log file.
func ReadTrajectory(path string) ([]TrajectoryFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := DecodeTrajectory(f)
	if err != nil {
		return nil, fmt.Errorf("bad trajectory %q: %v", path, err)
	}
	return frames, nil
}
