package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/platform/logger"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

// DefaultResolutions are the target widths used when none are configured.
var DefaultResolutions = []int{1024, 800}

const originalDirName = "original"

// Generator defines the interface for producing image variants.
// This interface serves as a boundary between task processing and the
// filesystem, network and image codecs it depends on.
type Generator interface {
	// Generate produces one variant per configured resolution, in configured order.
	// It returns an *AcquisitionError when the source cannot be read and a
	// *ProcessingError when a variant cannot be produced.
	Generate(ctx context.Context, sourceReference, taskID string) ([]*domain.ImageVariant, error)
}

// Fetcher downloads remote sources. Implementations return an error wrapping
// ErrSourceNotFound for a 404 response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resizer scales encoded image bytes to a target width, preserving aspect
// ratio, and encodes the result in the format named by ext.
type Resizer interface {
	Resize(src []byte, width int, ext string) ([]byte, error)
}

// Config holds the engine settings.
type Config struct {
	OutputDir     string
	Resolutions   []int
	HashAlgorithm string
}

// Engine implements Generator.
type Engine struct {
	fs          afero.Fs
	fetcher     Fetcher
	resizer     Resizer
	hash        HashFunc
	outputDir   string
	resolutions []int
	logger      *slog.Logger
	// collapses concurrent writers of the same output path
	inflight singleflight.Group
}

var _ Generator = (*Engine)(nil)

// NewEngine creates an Engine. Local sources and all outputs go through fs.
func NewEngine(
	cfg Config,
	fs afero.Fs,
	fetcher Fetcher,
	resizer Resizer,
	logger *slog.Logger,
) (*Engine, error) {
	if fs == nil || fetcher == nil || resizer == nil {
		return nil, fmt.Errorf("%w: filesystem, fetcher and resizer are required", ErrInvalidConfig)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("%w: output directory is required", ErrInvalidConfig)
	}

	resolutions := cfg.Resolutions
	if len(resolutions) == 0 {
		resolutions = DefaultResolutions
	}
	for _, r := range resolutions {
		if r <= 0 {
			return nil, fmt.Errorf("%w: resolution %d must be positive", ErrInvalidConfig, r)
		}
	}

	hashFn, err := NewHashFunc(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		fs:          fs,
		fetcher:     fetcher,
		resizer:     resizer,
		hash:        hashFn,
		outputDir:   cfg.OutputDir,
		resolutions: append([]int(nil), resolutions...),
		logger:      logger.With(slog.String("component", "variant_generator")),
	}, nil
}

// Generate implements Generator.
func (e *Engine) Generate(ctx context.Context, sourceReference, taskID string) ([]*domain.ImageVariant, error) {
	log := logger.FromContextOrDefault(ctx, e.logger).With(slog.String("task_id", taskID))
	start := time.Now()

	name, ext := domain.SourceFileName(sourceReference)
	workDir := filepath.Join(e.outputDir, name)
	originalDir := filepath.Join(workDir, originalDirName)
	if err := e.fs.MkdirAll(originalDir, 0o755); err != nil {
		return nil, &ProcessingError{Err: fmt.Errorf("create working directory: %w", err)}
	}

	data, err := e.acquire(ctx, sourceReference)
	if err != nil {
		log.Warn("source acquisition failed",
			slog.String("source_kind", domain.ClassifySource(sourceReference).String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	originalPath := filepath.Join(originalDir, "original"+ext)
	if err := e.writeFile(originalPath, data); err != nil {
		return nil, &AcquisitionError{Source: sourceReference, Reason: "cannot store original", Err: err}
	}

	// hash the acquired bytes rather than re-reading originalPath, which a
	// concurrent task with the same file name may be replacing
	contentHash := e.hash(data)

	variants := make([]*domain.ImageVariant, 0, len(e.resolutions))
	for _, res := range e.resolutions {
		resDir := filepath.Join(workDir, strconv.Itoa(res))
		outPath := filepath.Join(resDir, contentHash+ext)

		if err := e.fs.MkdirAll(resDir, 0o755); err != nil {
			return nil, &ProcessingError{Resolution: res, Err: err}
		}

		_, err, _ := e.inflight.Do(outPath, func() (interface{}, error) {
			return nil, e.produce(data, res, ext, outPath, log)
		})
		if err != nil {
			log.Error("variant generation failed",
				slog.Int("resolution", res),
				slog.String("error", err.Error()))
			return nil, &ProcessingError{Resolution: res, Err: err}
		}

		variants = append(variants, &domain.ImageVariant{
			TaskID:      taskID,
			Resolution:  strconv.Itoa(res),
			Path:        outPath,
			ContentHash: contentHash,
		})
	}

	log.Info("variants generated",
		slog.Int("count", len(variants)),
		slog.String("content_hash", contentHash),
		slog.Duration("duration", time.Since(start)))

	return variants, nil
}

func (e *Engine) acquire(ctx context.Context, ref string) ([]byte, error) {
	if domain.ClassifySource(ref) == domain.SourceRemote {
		data, err := e.fetcher.Fetch(ctx, ref)
		if err != nil {
			reason := "download failed"
			if errors.Is(err, ErrSourceNotFound) {
				reason = "not found"
			}
			return nil, &AcquisitionError{Source: ref, Reason: reason, Err: err}
		}
		return data, nil
	}

	if _, err := e.fs.Stat(ref); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &AcquisitionError{Source: ref, Reason: "does not exist", Err: ErrSourceNotFound}
		}
		return nil, &AcquisitionError{Source: ref, Reason: "cannot stat source", Err: err}
	}

	data, err := afero.ReadFile(e.fs, ref)
	if err != nil {
		return nil, &AcquisitionError{Source: ref, Reason: "cannot read source", Err: err}
	}
	return data, nil
}

// produce writes one variant unless it is already on disk.
func (e *Engine) produce(data []byte, res int, ext, outPath string, log *slog.Logger) error {
	exists, err := afero.Exists(e.fs, outPath)
	if err != nil {
		return err
	}
	if exists {
		log.Debug("variant already present, skipping resize",
			slog.Int("resolution", res),
			slog.String("path", outPath))
		return nil
	}

	resized, err := e.resizer.Resize(data, res, ext)
	if err != nil {
		return err
	}
	return e.writeFile(outPath, resized)
}

// writeFile writes data beside path and renames it into place so readers
// never observe a partial file.
func (e *Engine) writeFile(path string, data []byte) error {
	tmp, err := afero.TempFile(e.fs, filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = e.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = e.fs.Remove(tmpName)
		return err
	}
	// TempFile creates 0600
	if err := e.fs.Chmod(tmpName, 0o644); err != nil {
		_ = e.fs.Remove(tmpName)
		return err
	}
	if err := e.fs.Rename(tmpName, path); err != nil {
		_ = e.fs.Remove(tmpName)
		return err
	}
	return nil
}
