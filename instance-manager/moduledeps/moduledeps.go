// Package moduledeps expands installation lines into the set of
// technical module names passed to odoo's -i flag.
package moduledeps

import (
	"context"
	"sort"
	"strings"

	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
)

// Catalog looks up modules and bundles of one odoo version.
type Catalog interface {
	GetModule(ctx context.Context, key saasproto.ModuleKey, buf *saasproto.Module) (bool, error)
	GetBundle(ctx context.Context, key saasproto.BundleKey, buf *saasproto.Bundle) (bool, error)
}

type Resolver struct {
	catalog Catalog
}

func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the sorted module names for one line. A module
// expands to itself plus its direct dependencies only; dependencies of
// dependencies are left to odoo. A bundle is the union of that
// expansion over its members.
func (s *Resolver) Resolve(ctx context.Context, version string, line *saasproto.InstallationLine) ([]string, error) {
	names := make(map[string]struct{})
	if err := s.resolveLine(ctx, version, line, names); err != nil {
		return nil, err
	}
	return sortedNames(names), nil
}

// ResolveAll returns the sorted union of all lines plus the base module.
func (s *Resolver) ResolveAll(ctx context.Context, version string, lines []*saasproto.InstallationLine) ([]string, error) {
	names := map[string]struct{}{
		saasproto.BaseModule: struct{}{},
	}
	for _, line := range lines {
		if err := s.resolveLine(ctx, version, line, names); err != nil {
			return nil, err
		}
	}
	return sortedNames(names), nil
}

// InstallSet is ResolveAll's result for a single line, used by
// post-deploy installs which run one line at a time.
func (s *Resolver) InstallSet(ctx context.Context, version string, line *saasproto.InstallationLine) ([]string, error) {
	return s.ResolveAll(ctx, version, []*saasproto.InstallationLine{line})
}

func (s *Resolver) resolveLine(ctx context.Context, version string, line *saasproto.InstallationLine, names map[string]struct{}) error {
	if err := line.Validate(); err != nil {
		return err
	}
	if line.Module != "" {
		return s.expandModule(ctx, version, line.Module, names)
	}
	bundle := saasproto.Bundle{}
	key := saasproto.BundleKey{Version: version, Name: line.Bundle}
	found, err := s.catalog.GetBundle(ctx, key, &bundle)
	if err != nil {
		return err
	}
	if !found {
		return saasproto.NewValidationError("bundle %s not found for version %s", line.Bundle, version)
	}
	for _, mod := range bundle.Modules {
		if err := s.expandModule(ctx, version, mod, names); err != nil {
			return err
		}
	}
	return nil
}

func (s *Resolver) expandModule(ctx context.Context, version, name string, names map[string]struct{}) error {
	names[name] = struct{}{}
	mod := saasproto.Module{}
	key := saasproto.ModuleKey{Version: version, TechnicalName: name}
	found, err := s.catalog.GetModule(ctx, key, &mod)
	if err != nil {
		return err
	}
	if !found {
		// odoo ships modules that are not in the catalog
		log.SpanLog(ctx, log.DebugLevelDeploy, "module not in catalog, no dependencies added", "module", key.GetKeyString())
		return nil
	}
	for _, dep := range mod.Dependencies {
		names[dep] = struct{}{}
	}
	return nil
}

func sortedNames(names map[string]struct{}) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InstallArg joins names for odoo's -i flag.
func InstallArg(names []string) string {
	return strings.Join(names, ",")
}
