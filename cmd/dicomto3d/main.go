package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dicomto3d/pkg/config"
	"dicomto3d/pkg/dicomvol"
	"dicomto3d/pkg/segmentation"
	"dicomto3d/pkg/stl"
	"dicomto3d/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing a DICOM CT/CBCT series")
	outputDir := flag.String("output", ".", "Directory to write the STL surfaces to")
	configPath := flag.String("config", "", "Path to a YAML configuration file (optional)")
	preview := flag.Bool("preview", false, "Run the coarse preview extraction instead of the full pipeline")
	exportSlices := flag.Bool("export-slices", false, "Export windowed slice images along all axes")
	slicesDir := flag.String("slices-dir", "slices", "Directory to save exported slice images")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Output.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if *exportSlices {
		cfg.Output.ExportSlices = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("dir", *inputDir).Info("Scanning DICOM series")
	vol, err := dicomvol.LoadVolume(ctx, *inputDir)
	if err != nil {
		log.Fatalf("Failed to load series: %v", err)
	}
	log.WithFields(logrus.Fields{
		"series":  vol.Meta.SeriesUID,
		"slices":  len(vol.SliceFiles),
		"rows":    vol.Meta.Rows,
		"columns": vol.Meta.Columns,
		"spacing": fmt.Sprintf("%.3fx%.3fx%.3f mm", vol.Spacing[0], vol.Spacing[1], vol.Spacing[2]),
	}).Info("Series loaded")

	log.Info("Building Hounsfield volume")
	startTime := time.Now()
	data, err := dicomvol.BuildVolumeData(ctx, vol, logProgress(log, "slices decoded"))
	if err != nil {
		log.Fatalf("Failed to build volume: %v", err)
	}
	log.WithField("elapsed", time.Since(startTime).Round(time.Millisecond)).Info("Volume ready")

	if cfg.Output.ExportSlices {
		if err := exportSliceImages(data, filepath.Join(*outputDir, *slicesDir)); err != nil {
			log.Warnf("Failed to export slice images: %v", err)
		}
	}

	seg := segmentation.New(data, log)
	presets := cfg.TissuePresets()

	if *preview {
		runPreview(ctx, log, seg, presets)
		return
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if err := exportSurfaces(ctx, log, seg, presets, *outputDir, cfg.Processing.Workers); err != nil {
		log.Fatalf("Surface export failed: %v", err)
	}

	log.WithField("elapsed", time.Since(startTime).Round(time.Millisecond)).Info("All surfaces exported")
}

// exportSurfaces runs the final pipeline for each preset, at most workers at
// a time, and writes the resulting meshes as STL files.
func exportSurfaces(ctx context.Context, log *logrus.Logger, seg *segmentation.Segmenter, presets []segmentation.Preset, outputDir string, workers int) error {
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	errs := make(chan error, len(presets))

	var wg sync.WaitGroup
	for _, p := range presets {
		wg.Add(1)
		go func(p segmentation.Preset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m, err := seg.Final(ctx, p, func(msg string) { log.Info(msg) }, nil)
			if err != nil {
				errs <- fmt.Errorf("extracting %s surface: %w", p.Name, err)
				return
			}
			if m.IsEmpty() {
				log.WithField("preset", p.Name).Warn("Surface is empty, skipping export")
				return
			}

			outPath := filepath.Join(outputDir, presetFilename(p.Name))
			if err := stl.SaveToSTL(outPath, m); err != nil {
				errs <- fmt.Errorf("writing %s: %w", outPath, err)
				return
			}
			log.WithFields(logrus.Fields{
				"preset":    p.Name,
				"triangles": m.TriangleCount(),
				"file":      outPath,
			}).Info("Surface exported")
		}(p)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// runPreview runs the coarse concurrent extraction and reports mesh sizes
// without writing any files. Useful for picking thresholds before the full
// pipeline is paid for.
func runPreview(ctx context.Context, log *logrus.Logger, seg *segmentation.Segmenter, presets []segmentation.Preset) {
	log.Info("Running preview extraction")
	meshes, err := seg.Preview(ctx, presets)
	if err != nil {
		log.Fatalf("Preview failed: %v", err)
	}
	for name, m := range meshes {
		log.WithFields(logrus.Fields{
			"preset":    name,
			"triangles": m.TriangleCount(),
			"vertices":  m.VertexCount(),
		}).Info("Preview surface")
	}
}

// exportSliceImages saves windowed slice images along each axis using a wide
// window that covers both bone and soft tissue.
func exportSliceImages(data *dicomvol.VolumeData, dir string) error {
	viewer := visualization.NewViewer(data, 300, 2000)
	for _, axis := range []string{"x", "y", "z"} {
		if err := viewer.SaveSliceSequence(axis, filepath.Join(dir, axis)); err != nil {
			return err
		}
	}
	return nil
}

// logProgress returns a progress callback that logs every tenth of the total.
func logProgress(log *logrus.Logger, what string) func(done, total int) {
	return func(done, total int) {
		if total <= 0 {
			return
		}
		step := total / 10
		if step == 0 {
			step = 1
		}
		if done%step == 0 || done == total {
			log.Debugf("%d/%d %s", done, total, what)
		}
	}
}

// presetFilename derives a filesystem-friendly STL name from a preset name.
func presetFilename(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	return s + ".stl"
}
