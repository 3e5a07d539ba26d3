// Package segmentation sequences isosurface extraction and mesh
// post-processing into the two pipelines the planning UI drives: a coarse
// preview for live threshold feedback and a full-resolution final pass.
package segmentation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dicomto3d/pkg/dicomvol"
	"dicomto3d/pkg/isosurface"
	"dicomto3d/pkg/mesh"
)

// Segmenter runs tissue extractions over one immutable volume. The volume is
// only read, so any number of extractions may run concurrently on the same
// Segmenter.
type Segmenter struct {
	vol *dicomvol.VolumeData
	log *logrus.Logger
}

// New returns a Segmenter over vol. log may be nil to disable logging.
func New(vol *dicomvol.VolumeData, log *logrus.Logger) *Segmenter {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Segmenter{vol: vol, log: log}
}

// Preview extracts one coarse-stride surface per preset for interactive
// threshold feedback. Presets run concurrently; the result maps preset name
// to mesh. An error or cancellation in any extraction fails the whole call.
func (s *Segmenter) Preview(ctx context.Context, presets []Preset) (map[string]*mesh.MeshData, error) {
	type result struct {
		name string
		m    *mesh.MeshData
		err  error
	}
	results := make(chan result)

	for _, p := range presets {
		go func(p Preset) {
			m, err := isosurface.Extract(ctx, s.vol, p.ThresholdHU, p.PreviewStride, nil)
			results <- result{name: p.Name, m: m, err: err}
		}(p)
	}

	out := make(map[string]*mesh.MeshData, len(presets))
	var firstErr error
	for range presets {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		out[r.name] = r.m
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Final runs the full-resolution pipeline for one preset: stride-1
// extraction, Taubin smoothing, then decimation to the preset's triangle
// budget. stage, when non-nil, receives a human-readable description as each
// phase starts; progress, when non-nil, receives (done, total) updates within
// phases. The pipeline is cancellable between and within stages.
func (s *Segmenter) Final(ctx context.Context, p Preset, stage func(string), progress func(done, total int)) (*mesh.MeshData, error) {
	report := func(msg string) {
		if stage != nil {
			stage(msg)
		}
		s.log.WithField("preset", p.Name).Info(msg)
	}

	report(fmt.Sprintf("Extracting %s surface at %.0f HU", p.Name, p.ThresholdHU))
	m, err := isosurface.Extract(ctx, s.vol, p.ThresholdHU, 1, progress)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"preset":    p.Name,
		"triangles": m.TriangleCount(),
	}).Debug("extraction complete")

	report(fmt.Sprintf("Smoothing %s surface", p.Name))
	m, err = mesh.Smooth(ctx, m, p.SmoothIterations, progress)
	if err != nil {
		return nil, err
	}

	report(fmt.Sprintf("Simplifying %s surface", p.Name))
	m, err = mesh.Decimate(ctx, m, p.TriangleBudget)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"preset":    p.Name,
		"triangles": m.TriangleCount(),
	}).Debug("final surface ready")

	return m, nil
}
