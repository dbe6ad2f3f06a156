package capture

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// NewQRDecoder returns a DecodeFunc backed by the zxing QR reader.
func NewQRDecoder() DecodeFunc {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return func(img image.Image) (string, bool) {
		bmp, err := gozxing.NewBinaryBitmapFromImage(img)
		if err != nil {
			return "", false
		}
		res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
		if err != nil || res.GetText() == "" {
			return "", false
		}
		return res.GetText(), true
	}
}
