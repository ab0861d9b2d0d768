package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func checkValidName(t *testing.T, name string, want bool) {
	got := ValidName(name)
	if got != want {
		t.Errorf("checking name %s, wanted %t but got %t",
			name, want, got)
	}
}

func TestValidName(t *testing.T) {
	checkValidName(t, "myname", true)
	checkValidName(t, "my name", true)
	checkValidName(t, "EU Production 1", true)
	checkValidName(t, "db_primary-2", true)
	checkValidName(t, "", false)
	checkValidName(t, " name", false)
	checkValidName(t, "-name", false)
	checkValidName(t, "a;sldfj", false)
	checkValidName(t, "$fadf", false)
}

func TestValidSubdomain(t *testing.T) {
	require.True(t, ValidSubdomain("acme"))
	require.True(t, ValidSubdomain("acme-corp"))
	require.True(t, ValidSubdomain("a1"))
	require.False(t, ValidSubdomain(""))
	require.False(t, ValidSubdomain("-acme"))
	require.False(t, ValidSubdomain("acme-"))
	require.False(t, ValidSubdomain("Acme"))
	require.False(t, ValidSubdomain("acme.corp"))
	require.False(t, ValidSubdomain("acme corp"))

	require.True(t, ValidDomain("example.com"))
	require.True(t, ValidDomain("saas.example.co.uk"))
	require.False(t, ValidDomain("example"))
	require.False(t, ValidDomain("-example.com"))
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "acme_corp", DBNameSanitize("acme-corp"))
	require.Equal(t, "acme_corp_2", DBNameSanitize("acme.corp 2"))
	require.Equal(t, "Acme01", DBNameSanitize("Acme01"))
	require.Equal(t, "acme-corp", DNSSanitize("Acme_Corp"))
	require.Equal(t, "acme-corp_odoo", DockerSanitize("acme-corp_odoo"))
	require.Equal(t, "acme-corp", DockerSanitize("acme corp"))

	require.True(t, ValidTechnicalName("sale_management"))
	require.False(t, ValidTechnicalName("sale;rm"))
	require.True(t, ValidIPv4("10.0.0.5"))
	require.False(t, ValidIPv4("10.0.0"))
	require.False(t, ValidIPv4("::1"))
}
