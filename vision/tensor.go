// MODUL: tensor
// ZWECK: Binaere Kodierung von float32-Tensoren fuer die Runner-Schnittstelle
// INPUT: float32-Slices
// OUTPUT: little-endian bf16/fp16 Bytes und zurueck
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: github.com/d4l3k/go-bfloat16, github.com/x448/float16
// HINWEISE: Pipeline rechnet in bfloat16, der Face-Parser in float16

package vision

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType bezeichnet das Wire-Format eines Tensors
type DType string

const (
	DTypeBF16 DType = "bf16"
	DTypeF16  DType = "f16"
)

// ErrTensorSize wird zurueckgegeben wenn Bytes nicht zur Form passen
var ErrTensorSize = errors.New("tensor groesse passt nicht zur form")

// Tensor ist ein kodierter Tensor mit Form und Datentyp
type Tensor struct {
	Shape []int  `json:"shape"`
	DType DType  `json:"dtype"`
	Data  []byte `json:"data"`
}

// NumElements gibt die Anzahl der Elemente laut Form zurueck
func (t *Tensor) NumElements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// EncodeTensor kodiert float32-Werte im gewuenschten Format
func EncodeTensor(values []float32, shape []int, dtype DType) (*Tensor, error) {
	t := &Tensor{Shape: shape, DType: dtype}
	if t.NumElements() != len(values) {
		return nil, fmt.Errorf("%w: %d werte fuer form %v", ErrTensorSize, len(values), shape)
	}

	switch dtype {
	case DTypeBF16:
		t.Data = bfloat16.EncodeFloat32(values)
	case DTypeF16:
		t.Data = make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(t.Data[2*i:], float16.Fromfloat32(v).Bits())
		}
	default:
		return nil, fmt.Errorf("unbekannter dtype %q", dtype)
	}
	return t, nil
}

// Float32 dekodiert den Tensor wieder zu float32
func (t *Tensor) Float32() ([]float32, error) {
	if len(t.Data) != 2*t.NumElements() {
		return nil, fmt.Errorf("%w: %d bytes fuer form %v", ErrTensorSize, len(t.Data), t.Shape)
	}

	switch t.DType {
	case DTypeBF16:
		return bfloat16.DecodeFloat32(t.Data), nil
	case DTypeF16:
		values := make([]float32, len(t.Data)/2)
		for i := range values {
			values[i] = float16.Frombits(binary.LittleEndian.Uint16(t.Data[2*i:])).Float32()
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unbekannter dtype %q", t.DType)
	}
}
