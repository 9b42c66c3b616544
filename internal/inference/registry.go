package inference

import (
	"fmt"
	"maps"
	"slices"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// Handle is the part of a loaded model the registry needs.
type Handle interface {
	Predictor
	Classifier
	Name() string
	InputShape() []int
	OutputShapes() [][]int
	Close()
}

var _ Handle = (*Model)(nil)

// Registry holds every model loaded at startup, keyed by name. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	models map[string]Handle
}

// NewRegistry builds a registry from already loaded models.
func NewRegistry(models ...Handle) (*Registry, error) {
	r := &Registry{models: make(map[string]Handle, len(models))}
	for _, m := range models {
		if _, dup := r.models[m.Name()]; dup {
			return nil, errors.Newf("duplicate model name %q", m.Name()).
				Component("inference").
				Category(errors.CategoryConfiguration).
				Build()
		}
		r.models[m.Name()] = m
	}
	return r, nil
}

// LoadRegistry loads every model in paths (name to file). A failure closes the
// models loaded so far and is returned unchanged.
func LoadRegistry(paths map[string]string, opts Options) (*Registry, error) {
	handles := make([]Handle, 0, len(paths))
	for _, name := range slices.Sorted(maps.Keys(paths)) {
		m, err := Load(name, paths[name], opts)
		if err != nil {
			for _, h := range handles {
				h.Close()
			}
			return nil, err
		}
		handles = append(handles, m)
	}
	return NewRegistry(handles...)
}

// Get returns the model registered under name.
func (r *Registry) Get(name string) (Handle, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, errors.Newf("model %q is not loaded", name).
			Component("inference").
			Category(errors.CategoryNotFound).
			Build()
	}
	return m, nil
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.models))
}

// Validate checks every schema against its model's input tensor. Each schema
// must name a loaded model whose per-sample input size equals the field count.
func (r *Registry) Validate(schemas map[string][]string) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(schemas)) {
		m, err := r.Get(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := CheckInput(name, m.InputShape(), len(schemas[name])); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExpectOutput checks that the named model has one output, a vector of size n.
func (r *Registry) ExpectOutput(name string, n int) error {
	m, err := r.Get(name)
	if err != nil {
		return err
	}
	return CheckOutputs(name, m.OutputShapes(), n)
}

// Close releases every model.
func (r *Registry) Close() {
	for _, name := range r.Names() {
		r.models[name].Close()
		GetLogger().Debug("Model released", logger.String("model", name))
	}
}

// SampleSize is the element count of one sample: the product of all dimensions
// after the leading batch dimension. A rank-1 shape is a single sample.
func SampleSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	dims := shape
	if len(shape) > 1 {
		dims = shape[1:]
	}
	size := 1
	for _, d := range dims {
		size *= d
	}
	return size
}

// CheckInput verifies that a model input of the given shape takes want features.
func CheckInput(model string, shape []int, want int) error {
	if got := SampleSize(shape); got != want {
		return errors.Newf("model %s input shape %v takes %d features, schema has %d", model, shape, got, want).
			Component("inference").
			Category(errors.CategoryModelInit).
			Context("model", model).
			Context("expected", want).
			Context("actual", got).
			Build()
	}
	return nil
}

// CheckOutputs verifies that a model has exactly one output tensor and that it
// passes CheckOutput.
func CheckOutputs(model string, shapes [][]int, n int) error {
	if len(shapes) != 1 {
		return errors.Newf("model %s has %d outputs, expected 1", model, len(shapes)).
			Component("inference").
			Category(errors.CategoryModelInit).
			Context("model", model).
			Context("output_count", len(shapes)).
			Build()
	}
	return CheckOutput(model, shapes[0], n)
}

// CheckOutput verifies that shape is a single vector of length n, either [n] or [1, n].
func CheckOutput(model string, shape []int, n int) error {
	ok := (len(shape) == 1 && shape[0] == n) || (len(shape) == 2 && shape[0] == 1 && shape[1] == n)
	if !ok {
		return errors.New(fmt.Errorf("model %s output shape %v is not a single %d-vector", model, shape, n)).
			Component("inference").
			Category(errors.CategoryModelInit).
			Context("model", model).
			Context("expected_size", n).
			Build()
	}
	return nil
}
