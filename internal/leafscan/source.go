package leafscan

import (
	"github.com/agrisense/farm-advisor/internal/errors"
)

// Source identifies where an image came from.
type Source string

const (
	SourceUpload  Source = "upload"
	SourceCapture Source = "capture"
)

// ErrNoImage is returned when neither source supplied any bytes.
var ErrNoImage = errors.NewStd("no image supplied")

// SelectSource picks the image to diagnose. An upload always wins over a capture.
func SelectSource(upload, capture []byte) ([]byte, Source, error) {
	switch {
	case len(upload) > 0:
		return upload, SourceUpload, nil
	case len(capture) > 0:
		return capture, SourceCapture, nil
	default:
		return nil, "", ErrNoImage
	}
}
