package vision

import (
	"errors"
	"testing"
)

func TestEncodeTensorRoundtrip(t *testing.T) {
	// Werte, die in bf16 und f16 exakt darstellbar sind
	values := []float32{-1, -0.5, 0, 0.25, 1, 0.75}

	for _, dtype := range []DType{DTypeBF16, DTypeF16} {
		t.Run(string(dtype), func(t *testing.T) {
			tensor, err := EncodeTensor(values, []int{1, 3, 1, 2}, dtype)
			if err != nil {
				t.Fatal(err)
			}
			if len(tensor.Data) != 2*len(values) {
				t.Fatalf("Datenlaenge = %d, erwartet %d", len(tensor.Data), 2*len(values))
			}

			back, err := tensor.Float32()
			if err != nil {
				t.Fatal(err)
			}
			for i := range values {
				if back[i] != values[i] {
					t.Errorf("Wert %d = %f, erwartet %f", i, back[i], values[i])
				}
			}
		})
	}
}

func TestEncodeTensorShapeMismatch(t *testing.T) {
	_, err := EncodeTensor([]float32{1, 2, 3}, []int{1, 3, 2, 2}, DTypeBF16)
	if !errors.Is(err, ErrTensorSize) {
		t.Errorf("Fehler = %v, erwartet ErrTensorSize", err)
	}

	bad := &Tensor{Shape: []int{2}, DType: DTypeF16, Data: []byte{0, 0}}
	if _, err := bad.Float32(); !errors.Is(err, ErrTensorSize) {
		t.Errorf("Fehler = %v, erwartet ErrTensorSize", err)
	}
}

func TestEncodeTensorUnknownDType(t *testing.T) {
	if _, err := EncodeTensor([]float32{1}, []int{1}, "f8"); err == nil {
		t.Error("erwartet Fehler fuer unbekannten dtype")
	}
}
