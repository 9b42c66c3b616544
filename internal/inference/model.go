// Package inference loads TensorFlow Lite models and runs them behind small,
// fake-friendly interfaces.
package inference

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// Predictor produces a single scalar from a feature vector.
type Predictor interface {
	Predict(ctx context.Context, input []float32) (float32, error)
}

// Classifier produces a probability vector from an input tensor.
type Classifier interface {
	Classify(ctx context.Context, input []float32) ([]float32, error)
}

// Recorder receives timing and outcome of every model call.
type Recorder interface {
	RecordPrediction(model string, duration time.Duration, err error)
	RecordModelLoad(model string, err error)
}

// Options configures interpreter creation.
type Options struct {
	Threads    int // 0 picks a count from the CPU topology
	UseXNNPACK bool
	Recorder   Recorder
}

// Model is one loaded TFLite model. The interpreter is not re-entrant, so
// every invocation holds mu.
type Model struct {
	name        string
	path        string
	interpreter *tflite.Interpreter
	inputShape  []int
	outputShapes [][]int
	recorder    Recorder

	mu sync.Mutex
}

// Load reads the model at path and allocates an interpreter for it.
func Load(name, path string, opts Options) (*Model, error) {
	start := time.Now()
	m, err := load(name, path, opts, start)
	if opts.Recorder != nil {
		opts.Recorder.RecordModelLoad(name, err)
	}
	return m, err
}

func load(name, path string, opts Options, start time.Time) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryModelLoad).
			ModelContext(path, name).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model %s", name)).
			Component("inference").
			Category(errors.CategoryModelInit).
			ModelContext(path, name).
			Context("model_size_kb", len(data)/1024).
			Context("use_xnnpack", opts.UseXNNPACK).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := determineThreadCount(opts.Threads)
	options := tflite.NewInterpreterOptions()

	log := GetLogger()
	if opts.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: bounded by CPU count
		if delegate == nil {
			log.Warn("Failed to create XNNPACK delegate, falling back to default CPU", logger.String("model", name))
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("model", name), logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter for model %s", name).
			Component("inference").
			Category(errors.CategoryModelInit).
			ModelContext(path, name).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		return nil, errors.Newf("tensor allocation failed for model %s: %v", name, status).
			Component("inference").
			Category(errors.CategoryModelInit).
			ModelContext(path, name).
			Build()
	}

	// Multi-output models still load so they can be inspected; CheckOutputs rejects them for serving.
	in := interpreter.GetInputTensor(0)
	outputs := make([][]int, 0, interpreter.GetOutputTensorCount())
	for i := range interpreter.GetOutputTensorCount() {
		if out := interpreter.GetOutputTensor(i); out != nil {
			outputs = append(outputs, tensorShape(out))
		}
	}
	if in == nil || len(outputs) == 0 {
		interpreter.Delete()
		return nil, errors.Newf("model %s has no input or output tensor", name).
			Component("inference").
			Category(errors.CategoryModelInit).
			ModelContext(path, name).
			Context("output_count", interpreter.GetOutputTensorCount()).
			Build()
	}

	m := &Model{
		name:         name,
		path:         path,
		interpreter:  interpreter,
		inputShape:   tensorShape(in),
		outputShapes: outputs,
		recorder:     opts.Recorder,
	}

	log.Info("Model loaded",
		logger.String("model", name),
		logger.String("path", path),
		logger.Any("input_shape", m.inputShape),
		logger.Any("output_shapes", m.outputShapes),
		logger.Int("threads", threads),
		logger.Duration("elapsed", time.Since(start)))
	return m, nil
}

type shaped interface {
	NumDims() int
	Dim(i int) int
}

func tensorShape(t shaped) []int {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}
	return shape
}

// determineThreadCount caps the configured count at the CPU count; 0 selects
// physical cores so hyperthreads do not oversubscribe the interpreter.
func determineThreadCount(configured int) int {
	systemCPUs := runtime.NumCPU()
	if configured > 0 {
		return min(configured, systemCPUs)
	}
	if cores := cpuid.CPU.PhysicalCores; cores > 0 {
		return min(cores, systemCPUs)
	}
	return systemCPUs
}

// Name returns the registry name of the model.
func (m *Model) Name() string { return m.name }

// Path returns the file the model was loaded from.
func (m *Model) Path() string { return m.path }

// InputShape returns the dimensions of the first input tensor.
func (m *Model) InputShape() []int { return slices.Clone(m.inputShape) }

// OutputShapes returns the dimensions of every output tensor, in tensor order.
func (m *Model) OutputShapes() [][]int {
	shapes := make([][]int, len(m.outputShapes))
	for i, s := range m.outputShapes {
		shapes[i] = slices.Clone(s)
	}
	return shapes
}

// Classify runs the model and returns a copy of the whole output tensor.
func (m *Model) Classify(ctx context.Context, input []float32) ([]float32, error) {
	start := time.Now()
	out, err := m.invoke(ctx, input)
	if m.recorder != nil {
		m.recorder.RecordPrediction(m.name, time.Since(start), err)
	}
	return out, err
}

// Predict runs the model and returns the first output value.
func (m *Model) Predict(ctx context.Context, input []float32) (float32, error) {
	out, err := m.Classify(ctx, input)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, errors.Newf("model %s produced an empty output", m.name).
			Component("inference").
			Category(errors.CategoryInference).
			Build()
	}
	return out[0], nil
}

func (m *Model) invoke(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return nil, errors.Newf("model %s is closed", m.name).
			Component("inference").
			Category(errors.CategoryInference).
			Build()
	}

	in := m.interpreter.GetInputTensor(0)
	buf := in.Float32s()
	if len(buf) != len(input) {
		return nil, errors.Newf("model %s expects %d input values, got %d", m.name, len(buf), len(input)).
			Component("inference").
			Category(errors.CategoryInference).
			Context("model", m.name).
			Context("expected", len(buf)).
			Context("actual", len(input)).
			Build()
	}
	copy(buf, input)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("tensor invoke failed for model %s: %v", m.name, status).
			Component("inference").
			Category(errors.CategoryInference).
			Context("model", m.name).
			Build()
	}

	return slices.Clone(m.interpreter.GetOutputTensor(0).Float32s()), nil
}

// Close releases the interpreter. Calls after Close return an error.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
}
