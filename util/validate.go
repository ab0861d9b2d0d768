// Validation functions for validating data received
// from an external source - user input, or network data

package util

import (
	"net"
	"regexp"
	"strings"
)

var nameMatch = regexp.MustCompile("^[0-9a-zA-Z][-_0-9a-zA-Z .]*$")

// A single DNS label, lower case only.
var subdomainMatch = regexp.MustCompile("^[a-z0-9]([-a-z0-9]{0,61}[a-z0-9])?$")
var domainMatch = regexp.MustCompile(`^([a-z0-9]([-a-z0-9]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
var technicalNameMatch = regexp.MustCompile("^[a-z0-9_]+$")

func ValidName(name string) bool {
	return nameMatch.MatchString(name)
}

func ValidSubdomain(name string) bool {
	return subdomainMatch.MatchString(name)
}

func ValidDomain(name string) bool {
	return domainMatch.MatchString(name)
}

// ValidTechnicalName checks an application module name as used on
// the module install command line.
func ValidTechnicalName(name string) bool {
	return technicalNameMatch.MatchString(name)
}

func ValidIPv4(ip string) bool {
	addr := net.ParseIP(ip)
	return addr != nil && addr.To4() != nil
}

// DNSSanitize santizies the name string to make it usable in
// a DNS name. Valid chars are only 0-9, a-z, and '-'.
func DNSSanitize(name string) string {
	r := strings.NewReplacer(
		"_", "-",
		" ", "",
		".", "",
		"&", "",
		",", "",
		"!", "")
	return strings.ToLower(r.Replace(name))
}

// DBNameSanitize maps every character other than ASCII letters and
// digits to '_', so a subdomain like "acme-corp" becomes "acme_corp".
func DBNameSanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, name)
}

// DockerSanitize makes the name usable as a docker container or
// network name (only letters, digits, '_', '.' and '-').
func DockerSanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') ||
			r == '_' || r == '.' || r == '-' {
			return r
		}
		return '-'
	}, name)
}
