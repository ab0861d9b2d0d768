package cloudflaremgmt

import (
	"context"
	"fmt"
	"os"
	"testing"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/saascore/saas-cloud/log"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	zones   map[string]string
	records map[string]cloudflare.DNSRecord
	nextID  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		zones:   map[string]string{"example.com": "zone1"},
		records: make(map[string]cloudflare.DNSRecord),
	}
}

func (s *fakeAPI) ZoneIDByName(zoneName string) (string, error) {
	id, ok := s.zones[zoneName]
	if !ok {
		return "", fmt.Errorf("Zone could not be found")
	}
	return id, nil
}

func (s *fakeAPI) DNSRecords(zoneID string, rr cloudflare.DNSRecord) ([]cloudflare.DNSRecord, error) {
	out := []cloudflare.DNSRecord{}
	for _, r := range s.records {
		if r.ZoneID != zoneID {
			continue
		}
		if rr.Name != "" && r.Name != rr.Name {
			continue
		}
		if rr.Type != "" && r.Type != rr.Type {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeAPI) CreateDNSRecord(zoneID string, rr cloudflare.DNSRecord) (*cloudflare.DNSRecordResponse, error) {
	s.nextID++
	rr.ID = fmt.Sprintf("rec%d", s.nextID)
	rr.ZoneID = zoneID
	s.records[rr.ID] = rr
	return &cloudflare.DNSRecordResponse{Result: rr}, nil
}

func (s *fakeAPI) UpdateDNSRecord(zoneID, recordID string, rr cloudflare.DNSRecord) error {
	if _, ok := s.records[recordID]; !ok {
		return fmt.Errorf("record not found")
	}
	rr.ID = recordID
	rr.ZoneID = zoneID
	s.records[recordID] = rr
	return nil
}

func (s *fakeAPI) DeleteDNSRecord(zoneID, recordID string) error {
	delete(s.records, recordID)
	return nil
}

func TestProvider(t *testing.T) {
	log.SetDebugLevel(log.DebugLevelInfra)
	ctx := log.StartTestSpan(context.Background())
	api := newFakeAPI()
	p := NewProviderWithAPI(api)

	require.Nil(t, p.UpsertA(ctx, "example.com", "acme.example.com", "1.2.3.4"))
	recs, err := api.DNSRecords("zone1", cloudflare.DNSRecord{Name: "acme.example.com"})
	require.Nil(t, err)
	require.Equal(t, 1, len(recs))
	require.Equal(t, "1.2.3.4", recs[0].Content)
	require.Equal(t, "A", recs[0].Type)

	// same content is a no-op, new content updates in place
	require.Nil(t, p.UpsertA(ctx, "example.com", "acme.example.com", "1.2.3.4"))
	require.Nil(t, p.UpsertA(ctx, "example.com", "ACME.example.com", "5.6.7.8"))
	recs, err = api.DNSRecords("zone1", cloudflare.DNSRecord{Name: "acme.example.com"})
	require.Nil(t, err)
	require.Equal(t, 1, len(recs))
	require.Equal(t, "5.6.7.8", recs[0].Content)

	require.NotNil(t, p.UpsertA(ctx, "example.com", "acme.other.com", "1.2.3.4"))
	require.NotNil(t, p.UpsertA(ctx, "missing.com", "acme.missing.com", "1.2.3.4"))
	require.Nil(t, p.UpsertA(ctx, LocalTestZone, "acme."+LocalTestZone, "1.2.3.4"))

	require.Nil(t, p.DeleteRecords(ctx, "example.com", "acme.example.com"))
	recs, err = api.DNSRecords("zone1", cloudflare.DNSRecord{})
	require.Nil(t, err)
	require.Empty(t, recs)
	// deleting again is fine
	require.Nil(t, p.DeleteRecords(ctx, "example.com", "acme.example.com"))
}

// Runs against a real account when CF_USER, CF_KEY and CF_TEST_DOMAIN
// are set.
func TestCloudflare(t *testing.T) {
	user := os.Getenv("CF_USER")
	key := os.Getenv("CF_KEY")
	domain := os.Getenv("CF_TEST_DOMAIN")
	if user == "" || key == "" || domain == "" {
		t.Skip("cloudflare credentials not set")
	}
	ctx := log.StartTestSpan(context.Background())
	p, err := NewProvider(key, user)
	require.Nil(t, err)
	name := "saas-dns-test." + domain
	require.Nil(t, p.UpsertA(ctx, domain, name, "127.0.0.1"))
	require.Nil(t, p.DeleteRecords(ctx, domain, name))
}
