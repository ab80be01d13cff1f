package tpspace

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/selfdrive-go/tpsrrt/robotshape"
)

// Serialization versions. Bumping either constant when the encoded field
// layout changes lets UnmarshalBinary reject stale blobs explicitly rather
// than silently misreading them.
const (
	holonomicBlendVersion = 1
	diffDriveCVersion     = 1
)

// errVersionMismatch reports an unrecognized serialization version.
type errVersionMismatch struct {
	got  float64
	want int
}

func (e errVersionMismatch) Error() string {
	return fmt.Sprintf("tpspace: unsupported serialization version %g (want %d)", e.got, e.want)
}

// MarshalBinary implements encoding.BinaryMarshaler. Circular robot shapes
// are serialized as their radius; other Shape implementations are not
// currently round-trippable and produce an error.
func (h *HolonomicBlend) MarshalBinary() ([]byte, error) {
	circ, ok := h.shape.(*robotshape.Circular)
	if !ok {
		return nil, fmt.Errorf("tpspace: MarshalBinary requires a *robotshape.Circular shape")
	}
	var buf bytes.Buffer
	fields := []float64{
		float64(holonomicBlendVersion),
		float64(h.numPaths),
		h.refDist,
		h.tRampMax,
		h.vMax,
		h.wMax,
		circ.Radius(),
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	buf.Write(lengthPrefixed(h.exprV.String()))
	buf.Write(lengthPrefixed(h.exprW.String()))
	buf.Write(lengthPrefixed(h.exprTRamp.String()))
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *HolonomicBlend) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var version, numPaths, refDist, tRampMax, vMax, wMax, radius float64
	for _, dst := range []*float64{&version, &numPaths, &refDist, &tRampMax, &vMax, &wMax, &radius} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return err
		}
	}
	if version != float64(holonomicBlendVersion) {
		return errVersionMismatch{got: version, want: holonomicBlendVersion}
	}
	exprV, err := readLengthPrefixed(r)
	if err != nil {
		return err
	}
	exprW, err := readLengthPrefixed(r)
	if err != nil {
		return err
	}
	exprTRamp, err := readLengthPrefixed(r)
	if err != nil {
		return err
	}
	built, err := NewHolonomicBlend(HolonomicBlendConfig{
		NumPaths:      int(numPaths),
		RefDistance:   refDist,
		TRampMax:      tRampMax,
		VMax:          vMax,
		WMaxDegPerSec: wMax * 180 / 3.141592653589793,
		Shape:         robotshape.NewCircular(radius),
		ExprV:         exprV,
		ExprW:         exprW,
		ExprTRamp:     exprTRamp,
	})
	if err != nil {
		return err
	}
	*h = *built
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (d *DiffDriveC) MarshalBinary() ([]byte, error) {
	circ, ok := d.shape.(*robotshape.Circular)
	if !ok {
		return nil, fmt.Errorf("tpspace: MarshalBinary requires a *robotshape.Circular shape")
	}
	var buf bytes.Buffer
	fields := []float64{
		float64(diffDriveCVersion),
		float64(d.numPaths),
		d.vMax,
		d.wMax,
		d.k,
		d.rref,
		circ.Radius(),
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *DiffDriveC) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var version, numPaths, vMax, wMax, k, rref, radius float64
	for _, dst := range []*float64{&version, &numPaths, &vMax, &wMax, &k, &rref, &radius} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return err
		}
	}
	if version != float64(diffDriveCVersion) {
		return errVersionMismatch{got: version, want: diffDriveCVersion}
	}
	built, err := NewDiffDriveC(DiffDriveCConfig{
		NumPaths: int(numPaths),
		VMax:     vMax,
		WMax:     wMax,
		K:        k,
		Rref:     rref,
		Shape:    robotshape.NewCircular(radius),
	})
	if err != nil {
		return err
	}
	*d = *built
	return nil
}

func lengthPrefixed(s string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
	return buf.Bytes()
}

func readLengthPrefixed(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
