// MODUL: normalize
// ZWECK: Bild -> CHW float32 fuer Pipeline-Konditionierung und Face-Parser
// INPUT: ImageInput
// OUTPUT: float32-Werte im Layout [3, H, W]
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine
// HINWEISE: Parser erwartet ImageNet-Statistik, die Pipeline den Bereich [-1, 1]

package vision

// Statistiken des Face-Parsers
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

var signedMean, signedStd = [3]float32{0.5, 0.5, 0.5}, [3]float32{0.5, 0.5, 0.5}

// NormalizeRGB liefert (x/255 - mean) / std pro Kanal, Alpha wird ignoriert
func NormalizeRGB(img *ImageInput, mean, std [3]float32) []float32 {
	plane := img.Width * img.Height
	out := make([]float32, 3*plane)

	rgba := img.Image
	for y := range img.Height {
		row := rgba.Pix[rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y+y):]
		for x := range img.Width {
			px := row[4*x : 4*x+3]
			i := y*img.Width + x
			for c := range 3 {
				out[c*plane+i] = (float32(px[c])/255 - mean[c]) / std[c]
			}
		}
	}
	return out
}

// ToSignedTensor bildet [0, 255] linear auf [-1, 1] ab
func ToSignedTensor(img *ImageInput) []float32 {
	return NormalizeRGB(img, signedMean, signedStd)
}

// BatchShape ist [1, 3, H, W]
func (img *ImageInput) BatchShape() []int {
	return []int{1, 3, img.Height, img.Width}
}
