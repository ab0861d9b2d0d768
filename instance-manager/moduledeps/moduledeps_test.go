package moduledeps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/stretchr/testify/require"
)

type testCatalog struct {
	modules map[string]saasproto.Module
	bundles map[string]saasproto.Bundle
	err     error
}

func (s *testCatalog) GetModule(ctx context.Context, key saasproto.ModuleKey, buf *saasproto.Module) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	mod, found := s.modules[key.GetKeyString()]
	*buf = mod
	return found, nil
}

func (s *testCatalog) GetBundle(ctx context.Context, key saasproto.BundleKey, buf *saasproto.Bundle) (bool, error) {
	bundle, found := s.bundles[key.GetKeyString()]
	*buf = bundle
	return found, nil
}

func newTestCatalog() *testCatalog {
	cat := &testCatalog{
		modules: make(map[string]saasproto.Module),
		bundles: make(map[string]saasproto.Bundle),
	}
	addMod := func(name string, deps ...string) {
		mod := saasproto.Module{
			Key:          saasproto.ModuleKey{Version: "16", TechnicalName: name},
			Dependencies: deps,
		}
		cat.modules[mod.Key.GetKeyString()] = mod
	}
	addMod("sale", "product", "account")
	addMod("product", "uom")
	addMod("crm", "mail")
	addMod("website_sale", "website", "sale")
	// cycle
	addMod("loop_a", "loop_b")
	addMod("loop_b", "loop_a")
	bundle := saasproto.Bundle{
		Key:     saasproto.BundleKey{Version: "16", Name: "shop"},
		Modules: []string{"website_sale", "crm"},
	}
	cat.bundles[bundle.Key.GetKeyString()] = bundle
	return cat
}

func TestResolveModule(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	r := NewResolver(newTestCatalog())

	// direct dependencies only: uom from product is not added
	names, err := r.Resolve(ctx, "16", &saasproto.InstallationLine{Module: "sale"})
	require.Nil(t, err)
	require.Equal(t, []string{"account", "product", "sale"}, names)

	// one dependency plus base, sorted
	names, err = r.InstallSet(ctx, "16", &saasproto.InstallationLine{Module: "crm"})
	require.Nil(t, err)
	require.Equal(t, []string{"base", "crm", "mail"}, names)
	require.Equal(t, "base,crm,mail", InstallArg(names))

	// unknown to the catalog
	names, err = r.Resolve(ctx, "16", &saasproto.InstallationLine{Module: "l10n_fr"})
	require.Nil(t, err)
	require.Equal(t, []string{"l10n_fr"}, names)

	// cycles terminate
	names, err = r.Resolve(ctx, "16", &saasproto.InstallationLine{Module: "loop_a"})
	require.Nil(t, err)
	require.Equal(t, []string{"loop_a", "loop_b"}, names)

	// version scoped
	names, err = r.Resolve(ctx, "15", &saasproto.InstallationLine{Module: "sale"})
	require.Nil(t, err)
	require.Equal(t, []string{"sale"}, names)
}

func TestResolveBundle(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	r := NewResolver(newTestCatalog())

	line := &saasproto.InstallationLine{Bundle: "shop"}
	first, err := r.InstallSet(ctx, "16", line)
	require.Nil(t, err)
	require.Equal(t, []string{"base", "crm", "mail", "sale", "website", "website_sale"}, first)
	second, err := r.InstallSet(ctx, "16", line)
	require.Nil(t, err)
	require.Equal(t, first, second)

	_, err = r.Resolve(ctx, "16", &saasproto.InstallationLine{Bundle: "missing"})
	require.True(t, errors.Is(err, saasproto.ErrValidationFailure))

	_, err = r.Resolve(ctx, "16", &saasproto.InstallationLine{Bundle: "shop", Module: "crm"})
	require.True(t, errors.Is(err, saasproto.ErrValidationFailure))
}

func TestResolveAll(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	r := NewResolver(newTestCatalog())

	names, err := r.ResolveAll(ctx, "16", nil)
	require.Nil(t, err)
	require.Equal(t, []string{"base"}, names)

	names, err = r.ResolveAll(ctx, "16", []*saasproto.InstallationLine{
		{Module: "sale"},
		{Bundle: "shop"},
		{Module: "base"},
	})
	require.Nil(t, err)
	require.Equal(t, []string{"account", "base", "crm", "mail", "product", "sale", "website", "website_sale"}, names)

	cat := newTestCatalog()
	cat.err = fmt.Errorf("etcd unavailable")
	r = NewResolver(cat)
	_, err = r.ResolveAll(ctx, "16", []*saasproto.InstallationLine{{Module: "sale"}})
	require.NotNil(t, err)
}
