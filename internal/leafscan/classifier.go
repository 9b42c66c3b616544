package leafscan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/inference"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// ModelName is the registry name of the leaf classifier.
const ModelName = "leaf"

// DefaultCacheTTL applies when Config.CacheTTL is zero.
const DefaultCacheTTL = 30 * time.Minute

// Observer receives diagnosis outcomes.
type Observer interface {
	RecordDiagnosis(label string)
	RecordCacheLookup(hit bool)
}

// Config configures a Classifier.
type Config struct {
	CacheTTL time.Duration
	Observer Observer
}

// Classifier decodes images, runs the leaf model and interprets its output.
// Results are cached by the SHA-256 of the image bytes.
type Classifier struct {
	model    inference.Classifier
	cache    *cache.Cache
	observer Observer
}

// NewClassifier wraps model. A negative CacheTTL disables caching.
func NewClassifier(model inference.Classifier, cfg Config) *Classifier {
	c := &Classifier{model: model, observer: cfg.Observer}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > 0 {
		c.cache = cache.New(ttl, ttl*2)
	}
	return c
}

// CheckModel verifies that a model's input shape and output tensors fit the classifier.
func CheckModel(input []int, outputs [][]int) error {
	if err := inference.CheckInput(ModelName, input, InputHeight*InputWidth*InputChannels); err != nil {
		return err
	}
	return inference.CheckOutputs(ModelName, outputs, len(Labels))
}

// Diagnose runs the full pipeline on raw image bytes.
func (c *Classifier) Diagnose(ctx context.Context, data []byte) (Diagnosis, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if c.cache != nil {
		cached, found := c.cache.Get(key)
		c.recordCacheLookup(found)
		if found {
			GetLogger().Debug("Diagnosis served from cache", logger.String("sha256", key[:12]))
			return cached.(Diagnosis).clone(), nil
		}
	}

	start := time.Now()
	img, err := Decode(data)
	if err != nil {
		return Diagnosis{}, err
	}
	if img.Bounds().Empty() {
		return Diagnosis{}, errors.Newf("image has no pixels").
			Component("leafscan").
			Category(errors.CategoryImageDecode).
			Build()
	}

	probs, err := c.model.Classify(ctx, Preprocess(img))
	if err != nil {
		return Diagnosis{}, errors.New(err).
			Component("leafscan").
			Category(errors.CategoryInference).
			Timing("classify", time.Since(start)).
			Build()
	}

	d, err := Interpret(probs)
	if err != nil {
		return Diagnosis{}, err
	}

	if c.observer != nil {
		c.observer.RecordDiagnosis(d.Label)
	}
	if c.cache != nil {
		c.cache.Set(key, d.clone(), cache.DefaultExpiration)
	}

	GetLogger().Info("Leaf diagnosed",
		logger.String("label", d.Label),
		logger.Float64("confidence", d.Confidence),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()),
		logger.Duration("elapsed", time.Since(start)))
	return d, nil
}

func (c *Classifier) recordCacheLookup(hit bool) {
	if c.observer != nil {
		c.observer.RecordCacheLookup(hit)
	}
}

// CacheSize returns the number of cached diagnoses.
func (c *Classifier) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.ItemCount()
}
