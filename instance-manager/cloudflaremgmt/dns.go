package cloudflaremgmt

import (
	"context"
	"fmt"
	"strings"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/saascore/saas-cloud/log"
)

var LocalTestZone = "localtest.net"

// DefaultTTL of 1 means automatic.
const DefaultTTL = 1

// DNSAPI is the subset of the cloudflare API used here.
type DNSAPI interface {
	ZoneIDByName(zoneName string) (string, error)
	DNSRecords(zoneID string, rr cloudflare.DNSRecord) ([]cloudflare.DNSRecord, error)
	CreateDNSRecord(zoneID string, rr cloudflare.DNSRecord) (*cloudflare.DNSRecordResponse, error)
	UpdateDNSRecord(zoneID, recordID string, rr cloudflare.DNSRecord) error
	DeleteDNSRecord(zoneID, recordID string) error
}

// Provider manages instance A records in cloudflare zones.
type Provider struct {
	api DNSAPI
	TTL int
}

func NewProvider(apiKey, user string) (*Provider, error) {
	api, err := cloudflare.New(apiKey, user)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize cloudflare API, %v", err)
	}
	return NewProviderWithAPI(api), nil
}

func NewProviderWithAPI(api DNSAPI) *Provider {
	return &Provider{
		api: api,
		TTL: DefaultTTL,
	}
}

// UpsertA points name at ip, changing the existing record if found
// or adding a new one.
func (s *Provider) UpsertA(ctx context.Context, zone, name, ip string) error {
	log.SpanLog(ctx, log.DebugLevelInfra, "UpsertA", "zone", zone, "name", name, "ip", ip)

	if !strings.HasSuffix(name, "."+zone) {
		return fmt.Errorf("DNS record name %s is not in zone %s", name, zone)
	}
	if ip == "" {
		return fmt.Errorf("missing record content for %s", name)
	}
	if zone == LocalTestZone {
		log.SpanLog(ctx, log.DebugLevelInfra, "Skip record creation for test zone", "zone", zone)
		return nil
	}
	zoneID, err := s.api.ZoneIDByName(zone)
	if err != nil {
		return err
	}
	queryRecord := cloudflare.DNSRecord{
		Name: strings.ToLower(name),
		Type: "A",
	}
	records, err := s.api.DNSRecords(zoneID, queryRecord)
	if err != nil {
		return err
	}
	record := cloudflare.DNSRecord{
		Name:    strings.ToLower(name),
		Type:    "A",
		Content: ip,
		TTL:     s.TTL,
	}
	for _, r := range records {
		if r.Content == ip {
			log.SpanLog(ctx, log.DebugLevelInfra, "UpsertA existing record matches", "name", name)
			continue
		}
		if err := s.api.UpdateDNSRecord(zoneID, r.ID, record); err != nil {
			return fmt.Errorf("cannot update DNS record for zone %s name %s, %v", zone, name, err)
		}
	}
	if len(records) == 0 {
		if _, err := s.api.CreateDNSRecord(zoneID, record); err != nil {
			return fmt.Errorf("cannot create DNS record for zone %s, %v", zone, err)
		}
	}
	return nil
}

// DeleteRecords removes every record for name in zone.
func (s *Provider) DeleteRecords(ctx context.Context, zone, name string) error {
	log.SpanLog(ctx, log.DebugLevelInfra, "DeleteRecords", "zone", zone, "name", name)
	if zone == LocalTestZone {
		return nil
	}
	if name == "" {
		return fmt.Errorf("missing name")
	}
	zoneID, err := s.api.ZoneIDByName(zone)
	if err != nil {
		return err
	}
	records, err := s.api.DNSRecords(zoneID, cloudflare.DNSRecord{Name: strings.ToLower(name)})
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := s.api.DeleteDNSRecord(zoneID, r.ID); err != nil {
			return fmt.Errorf("cannot delete DNS record id %s zone %s, %v", r.ID, zone, err)
		}
	}
	return nil
}
