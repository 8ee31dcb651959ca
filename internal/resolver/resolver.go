package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"gitlab.com/chora/chora/internal/vfs"
	"gitlab.com/chora/chora/metrics"
)

// TemplateSegment stands in for any single path segment
const TemplateSegment = "__TEMPLATE__"

// ErrNotFound is returned when neither the target nor any single-segment
// template substitution of it is a directory
var ErrNotFound = errors.New("route not found")

// Option function to configure a Resolver
type Option func(*Resolver)

// Resolver maps route targets onto existing directories
type Resolver struct {
	fs   vfs.VFS
	base string
}

// New returns a Resolver reading from fs
func New(fs vfs.VFS, opts ...Option) *Resolver {
	r := &Resolver{fs: fs}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// WithBase keeps the segments of base out of template substitution for
// targets below it, so the route root itself is never templated
func WithBase(base string) Option {
	return func(r *Resolver) {
		r.base = filepath.Clean(base)
	}
}

// Resolve returns target itself when it is a directory. Otherwise every
// single-segment substitution with TemplateSegment is tried, from the last
// segment towards the first, and the first existing directory is returned.
func (r *Resolver) Resolve(ctx context.Context, target string) (string, error) {
	target = filepath.Clean(target)

	if vfs.IsDir(ctx, r.fs, target) {
		return target, nil
	}

	for _, candidate := range Candidates(r.base, target) {
		if vfs.IsDir(ctx, r.fs, candidate) {
			metrics.TemplateFallbacks.Inc()

			log.WithFields(log.Fields{
				"target":   target,
				"template": candidate,
			}).Debug("route resolved through template")

			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, target)
}

// Candidates lists the template substitutions of target in the order they
// are tried. The leading separator of an absolute path is not a segment, and
// neither are the segments of base when target lies below it.
func Candidates(base, target string) []string {
	prefix, rel := splitBase(base, filepath.Clean(target))
	if rel == "" || rel == "." {
		return nil
	}

	segments := strings.Split(rel, string(filepath.Separator))
	candidates := make([]string, 0, len(segments))

	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == TemplateSegment {
			continue
		}

		parts := make([]string, len(segments))
		copy(parts, segments)
		parts[i] = TemplateSegment

		candidates = append(candidates, filepath.Join(prefix, filepath.Join(parts...)))
	}

	return candidates
}

// splitBase separates the fixed prefix of target from the part whose
// segments may be substituted
func splitBase(base, target string) (string, string) {
	if base != "" {
		rel, err := filepath.Rel(base, target)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return base, rel
		}
	}

	if filepath.IsAbs(target) {
		return string(filepath.Separator), strings.TrimPrefix(target, string(filepath.Separator))
	}

	return "", target
}
