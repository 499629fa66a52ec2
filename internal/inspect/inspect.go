package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phobologic/cloudgraph/internal/archive"
	"github.com/phobologic/cloudgraph/internal/fetch"
	"github.com/phobologic/cloudgraph/internal/model"
)

// DefaultCacheSize bounds the number of distinct packages remembered per run.
const DefaultCacheSize = 512

// Inspector fetches function packages and extracts inferred dependencies.
// Packages with the same code hash are scanned once; package bytes are
// released before Infer returns.
type Inspector struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
	ignore  []string
	cache   *lru.Cache[string, []Reference]
}

// Option customizes an Inspector.
type Option func(*Inspector)

// WithIgnore replaces the gitignore-style patterns applied to package listings.
func WithIgnore(patterns []string) Option {
	return func(in *Inspector) { in.ignore = patterns }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Inspector) { in.logger = logger }
}

// New creates an Inspector. cacheSize <= 0 selects DefaultCacheSize.
func New(fetcher fetch.Fetcher, cacheSize int, opts ...Option) (*Inspector, error) {
	if fetcher == nil {
		return nil, errors.New("inspect: fetcher is required")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []Reference](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("inspect: creating cache: %w", err)
	}
	in := &Inspector{
		fetcher: fetcher,
		logger:  slog.Default(),
		cache:   cache,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Infer returns the dependencies guessed from fn's package.
//
// A failed download wraps model.ErrSourceUnavailable. A function without a
// zip package, an undecodable package, a missing source file or non-text
// content wraps model.ErrInspection; the caller keeps the function node and
// moves on.
func (in *Inspector) Infer(ctx context.Context, fn model.FunctionInfo) ([]model.InferredDependency, error) {
	family := ForRuntime(fn.Runtime)
	if family == nil {
		return nil, fmt.Errorf("%w: no inspection family for runtime %q", model.ErrInspection, fn.Runtime)
	}

	key := ""
	if fn.Package.CodeSHA256 != "" {
		key = family.Name() + "/" + fn.Package.CodeSHA256
		if refs, ok := in.cache.Get(key); ok {
			in.logger.Debug("Reusing package scan.", "function", fn.Name, "sha256", fn.Package.CodeSHA256)
			return dependencies(fn, refs), nil
		}
	}

	if fn.Package.Location == "" {
		if fn.Package.ImageURI != "" {
			return nil, fmt.Errorf("%w: %s is a container image (%s)", model.ErrInspection, fn.Name, fn.Package.ImageURI)
		}
		return nil, fmt.Errorf("%w: %s has no package location", model.ErrInspection, fn.Name)
	}

	data, err := in.fetcher.Fetch(ctx, fn.Package.Location)
	if err != nil {
		return nil, fmt.Errorf("fetching package of %s: %w", fn.Name, err)
	}

	refs, err := Scan(family, data, in.ignore)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", fn.Name, err)
	}
	if key != "" {
		in.cache.Add(key, refs)
	}
	in.logger.Debug("Scanned package.", "function", fn.Name, "family", family.Name(), "references", len(refs))
	return dependencies(fn, refs), nil
}

// Scan opens a zip package, picks the family's source file and extracts its
// references. The archive is closed before Scan returns.
func Scan(family Family, data []byte, ignore []string) ([]Reference, error) {
	a, err := archive.Open(data, ignore)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInspection, err)
	}
	defer a.Close()

	name, ok := family.LocateFile(a.Names())
	if !ok {
		return nil, fmt.Errorf("%w: no %s source file in package", model.ErrInspection, family.Name())
	}
	source, err := a.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInspection, err)
	}
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("%w: %s is not UTF-8 text", model.ErrInspection, name)
	}

	refs := family.Extract(source)
	if r, ok := family.(*Runtime); ok {
		annotate(r, name, source, refs)
	}
	return refs, nil
}

func dependencies(fn model.FunctionInfo, refs []Reference) []model.InferredDependency {
	label := fn.Label()
	var deps []model.InferredDependency
	for _, ref := range refs {
		for _, dir := range ref.Directions {
			deps = append(deps, model.InferredDependency{
				FunctionLabel: label,
				TargetLabel:   ref.Target,
				TargetKind:    ref.Kind,
				Direction:     dir,
				Site:          ref.Site,
			})
		}
	}
	return deps
}
