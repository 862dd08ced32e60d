package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"gocv.io/x/gocv"
)

const (
	labelSize     = 16
	vizStripRatio = 0.2
)

// Stage composites the camera frame, the hand overlay, the visualizer strip
// and a status label into a single image.
type Stage struct {
	face font.Face
}

// NewStage loads the label font.
func NewStage() (*Stage, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Stage{face: truetype.NewFace(f, &truetype.Options{Size: labelSize})}, nil
}

// Compose draws the layers back to front. The result has the frame's size,
// or the overlay's when no frame is available. Nil layers are skipped.
func (s *Stage) Compose(frame, overlay, viz image.Image, label string) image.Image {
	var size image.Point
	switch {
	case frame != nil:
		size = frame.Bounds().Size()
	case overlay != nil:
		size = overlay.Bounds().Size()
	default:
		size = image.Pt(defaultOverlayW, defaultOverlayH)
	}

	dc := gg.NewContext(size.X, size.Y)
	dc.SetRGB(0.07, 0.07, 0.07)
	dc.Clear()

	if frame != nil {
		dc.DrawImage(frame, 0, 0)
	}
	if overlay != nil {
		dc.DrawImage(overlay, 0, 0)
	}

	if viz != nil {
		vb := viz.Bounds().Size()
		stripH := float64(size.Y) * vizStripRatio
		top := float64(size.Y) - stripH

		dc.SetRGBA(0, 0, 0, 0.35)
		dc.DrawRectangle(0, top, float64(size.X), stripH)
		dc.Fill()

		if vb.X > 0 && vb.Y > 0 {
			dc.Push()
			dc.Translate(0, top)
			dc.Scale(float64(size.X)/float64(vb.X), stripH/float64(vb.Y))
			dc.DrawImage(viz, 0, 0)
			dc.Pop()
		}
	}

	if label != "" {
		dc.SetFontFace(s.face)
		dc.SetColor(color.RGBA{R: 255, G: 255, B: 255, A: 220})
		dc.DrawString(label, 12, 12+labelSize)
	}

	return dc.Image()
}

// FrameImage converts a captured frame to an image for compositing.
func FrameImage(frame *gocv.Mat) (image.Image, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	return frame.ToImage()
}

// EncodeJPEG encodes an image with OpenCV's JPEG encoder.
func EncodeJPEG(img image.Image) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
