package v1

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/leafscan"
	"github.com/agrisense/farm-advisor/internal/logger"
	"github.com/agrisense/farm-advisor/internal/notification"
)

// Multipart field names for the leaf image.
const (
	FormUpload  = "upload"
	FormCapture = "capture"
)

// FieldAdviceResponse is the body of a successful field advice call.
type FieldAdviceResponse struct {
	Prediction advisor.Prediction `json:"prediction"`
	Readout    advisor.Readout    `json:"readout"`
}

// LeafAdviceResponse is the body of a successful leaf diagnosis.
type LeafAdviceResponse struct {
	Source    leafscan.Source    `json:"source"`
	Diagnosis leafscan.Diagnosis `json:"diagnosis"`
}

// FieldAdvice handles POST /api/v1/advice/field. Any stage failure fails the
// whole response; no partial prediction is returned.
func (c *Controller) FieldAdvice(ctx echo.Context) error {
	var reading features.FieldReading
	if err := ctx.Bind(&reading); err != nil {
		return c.HandleError(ctx, err, "Invalid field reading", http.StatusBadRequest)
	}
	if err := reading.Validate(); err != nil {
		return c.HandleError(ctx, err, "Field reading out of range", http.StatusBadRequest)
	}

	prediction, err := c.advisor.Run(ctx.Request().Context(), reading)
	if err != nil {
		return c.HandleError(ctx, err, "Prediction failed", http.StatusInternalServerError)
	}

	sess := sessionFrom(ctx)
	c.notify(notification.NewFieldAdviceEvent(sess.Username, reading, prediction))

	return ctx.JSON(http.StatusOK, FieldAdviceResponse{
		Prediction: prediction,
		Readout:    advisor.Format(reading, prediction),
	})
}

// LeafAdvice handles POST /api/v1/advice/leaf. The multipart body may carry
// an "upload" file, a "capture" file or both; the upload wins.
func (c *Controller) LeafAdvice(ctx echo.Context) error {
	upload, err := c.readFormFile(ctx, FormUpload)
	if err != nil {
		return c.imageReadError(ctx, err)
	}
	capture, err := c.readFormFile(ctx, FormCapture)
	if err != nil {
		return c.imageReadError(ctx, err)
	}

	data, source, err := leafscan.SelectSource(upload, capture)
	if err != nil {
		return c.HandleError(ctx, err, "Please upload or capture a banana leaf image", http.StatusBadRequest)
	}

	diagnosis, err := c.leaf.Diagnose(ctx.Request().Context(), data)
	if err != nil {
		code := http.StatusInternalServerError
		message := "Diagnosis failed"
		if errors.IsCategory(err, errors.CategoryImageDecode) {
			code = http.StatusBadRequest
			message = "Unsupported or corrupt image"
		}
		return c.HandleError(ctx, err, message, code)
	}

	sess := sessionFrom(ctx)
	c.logger.Debug("Leaf diagnosis served",
		logger.String("username", sess.Username),
		logger.String("source", string(source)),
		logger.String("label", diagnosis.Label))
	c.notify(notification.NewLeafDiagnosisEvent(sess.Username, diagnosis))

	return ctx.JSON(http.StatusOK, LeafAdviceResponse{Source: source, Diagnosis: diagnosis})
}

var errImageTooLarge = errors.NewStd("image exceeds upload limit")

// readFormFile returns the named part's bytes, or nil when the part is absent.
func (c *Controller) readFormFile(ctx echo.Context, name string) ([]byte, error) {
	fh, err := ctx.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	if fh.Size > c.maxUploadBytes {
		return nil, errImageTooLarge
	}
	return readLimited(fh, c.maxUploadBytes)
}

func readLimited(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errImageTooLarge
	}
	return data, nil
}

func (c *Controller) imageReadError(ctx echo.Context, err error) error {
	if errors.Is(err, errImageTooLarge) {
		return c.HandleError(ctx, err, "Image is too large", http.StatusRequestEntityTooLarge)
	}
	return c.HandleError(ctx, err, "Invalid image upload", http.StatusBadRequest)
}
