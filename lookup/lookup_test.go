package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"client-data-service/models"

	"github.com/redis/go-redis/v9"
)

func s(v string) *string   { return &v }
func f(v float64) *float64 { return &v }

// fakeRepo отдаёт подготовленные данные и позволяет менять их между вызовами.
type fakeRepo struct {
	firms   models.FirmLists
	clients []models.ClientRecord
	recent  []models.ClientRecord
	err     error
}

func (r *fakeRepo) InsertRecord(rec *models.ClientRecord) error { return nil }
func (r *fakeRepo) GetRecord(id uint) (*models.ClientRecord, error) {
	return nil, models.ErrNotFound
}
func (r *fakeRepo) FirmNames() (models.FirmLists, error) {
	if r.err != nil {
		return models.FirmLists{}, r.err
	}
	return r.firms, nil
}
func (r *fakeRepo) CurrentClients() ([]models.ClientRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.clients, nil
}
func (r *fakeRepo) RecentRecords(limit int) ([]models.ClientRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.recent) > limit {
		return r.recent[:limit], nil
	}
	return r.recent, nil
}
func (r *fakeRepo) Ping() error  { return nil }
func (r *fakeRepo) Close() error { return nil }

// fakeCache - RedisClient поверх карты, без истечения по времени.
type fakeCache struct {
	store map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string]string{}} }

func (c *fakeCache) GetFromCache(ctx context.Context, key string) (string, error) {
	v, ok := c.store[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (c *fakeCache) SetToCache(ctx context.Context, key, value string, expiration time.Duration) error {
	c.store[key] = value
	return nil
}
func (c *fakeCache) DeleteFromCache(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}
func (c *fakeCache) Close() error { return nil }

func TestFetchServesCachedSnapshot(t *testing.T) {
	repo := &fakeRepo{
		firms: models.FirmLists{Companies: []string{"Acme Corp"}},
	}
	provider := NewProvider(repo, newFakeCache())
	ctx := context.Background()

	first, err := provider.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(first.Companies) != 1 || first.Companies[0] != "Acme Corp" {
		t.Fatalf("Unexpected companies: %v", first.Companies)
	}

	// Данные в базе поменялись, но окно кэша ещё не истекло
	repo.firms = models.FirmLists{Companies: []string{"Acme Corp", "NewCo"}}

	second, err := provider.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(second.Companies) != 1 {
		t.Errorf("Cached fetch must ignore store changes, got %v", second.Companies)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	repo := &fakeRepo{
		firms: models.FirmLists{Companies: []string{"Acme Corp"}},
	}
	provider := NewProvider(repo, newFakeCache())
	ctx := context.Background()

	if _, err := provider.Fetch(ctx); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	repo.firms = models.FirmLists{Companies: []string{"Acme Corp", "NewCo"}}
	if err := provider.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	got, err := provider.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got.Companies) != 2 {
		t.Errorf("Fetch after invalidation must reload, got %v", got.Companies)
	}
}

func TestFetchFailureReturnsEmptyContainers(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection refused")}
	provider := NewProvider(repo, newFakeCache())

	got, err := provider.Fetch(context.Background())
	if err == nil {
		t.Fatal("Expected an error to surface")
	}
	if len(got.Companies) != 0 || len(got.Clients) != 0 || len(got.Recent) != 0 {
		t.Errorf("Failure must yield empty containers, got %+v", got)
	}
}

func TestFetchWithoutCache(t *testing.T) {
	repo := &fakeRepo{firms: models.FirmLists{Brokers: []string{"BrokerOne"}}}
	provider := NewProvider(repo, nil)

	got, err := provider.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got.Brokers) != 1 {
		t.Errorf("Unexpected brokers: %v", got.Brokers)
	}
}

func TestPrefillForBlankKeys(t *testing.T) {
	rows := []models.ClientRecord{{Company: "Acme Corp", ClientType: "Customer"}}
	if PrefillFor(rows, "", "Customer") != nil {
		t.Error("Blank company must yield no prefill")
	}
	if PrefillFor(rows, "Acme Corp", "") != nil {
		t.Error("Blank client type must yield no prefill")
	}
	if PrefillFor(rows, "Other", "Customer") != nil {
		t.Error("No matching row must yield no prefill")
	}
}

func TestPrefillForFirstMatchWins(t *testing.T) {
	// Строки приходят в порядке entry_date DESC, первая - самая свежая.
	rows := []models.ClientRecord{
		{Company: "Acme Corp", ClientType: "Customer", Notes: s("latest")},
		{Company: "Acme Corp", ClientType: "Customer", Notes: s("older")},
	}
	p := PrefillFor(rows, "Acme Corp", "Customer")
	if p == nil {
		t.Fatal("Expected a prefill")
	}
	if p.Scalars["notes"] != "latest" {
		t.Errorf("notes = %q, want \"latest\"", p.Scalars["notes"])
	}
}

func TestPrefillTransformsStoredRow(t *testing.T) {
	rows := []models.ClientRecord{{
		Company:        "Acme Corp",
		ClientType:     "Customer",
		ClientStatus:   s("Client"),
		Barriers:       s("Fees, Margin"),
		Clearers:       s("ClearCo"),
		DecisionMakers: s(""),
		EUAVolume:      f(7500),
	}}

	p := PrefillFor(rows, "Acme Corp", "Customer")
	if p == nil {
		t.Fatal("Expected a prefill")
	}
	if p.Scalars["client_status"] != "Client" {
		t.Errorf("client_status = %q", p.Scalars["client_status"])
	}
	if len(p.Sets["barriers"]) != 2 || p.Sets["barriers"][0] != "Fees" || p.Sets["barriers"][1] != "Margin" {
		t.Errorf("barriers = %v", p.Sets["barriers"])
	}
	if _, ok := p.Scalars["decision_makers"]; ok {
		t.Error("Blank stored string must become absent")
	}
	if p.Volumes["eua_volume"] == nil || *p.Volumes["eua_volume"] != 7500 {
		t.Errorf("eua_volume = %v", p.Volumes["eua_volume"])
	}
	if p.Volumes["go_volume"] != nil {
		t.Error("Missing stored volume must stay nil")
	}
}
