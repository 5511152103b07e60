package cache

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testStore(t *testing.T, store Store) {
	if err := store.Initialize(); err != nil {
		t.Fatalf("Could not initialize: %v", err)
	}
	// idempotent
	if err := store.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}

	if entry, err := store.Get("nope"); err != nil || entry != nil {
		t.Fatalf("Expected miss, got %+v, %v", entry, err)
	}

	now := time.Now().Truncate(time.Millisecond)
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	entry := Entry{
		Data:         []byte(`{"msg":"hi"}`),
		Headers:      h,
		ETag:         `"v1"`,
		LastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
		ServerDate:   now,
		TTL:          now.Add(time.Hour),
		SoftTTL:      now.Add(time.Minute),
		ReceivedAt:   now,
	}
	if err := store.Put("GET:/items", entry); err != nil {
		t.Fatalf("Could not put: %v", err)
	}
	got, err := store.Get("GET:/items")
	if err != nil || got == nil {
		t.Fatalf("Expected hit, got %+v, %v", got, err)
	}
	if string(got.Data) != `{"msg":"hi"}` {
		t.Fatalf("Data is %s", got.Data)
	}
	if got.ETag != `"v1"` || got.LastModified != entry.LastModified {
		t.Fatalf("Validators are %q %q", got.ETag, got.LastModified)
	}
	if len(got.Headers.Values("Set-Cookie")) != 2 || got.Headers.Get("Content-Type") != "application/json" {
		t.Fatalf("Headers are %v", got.Headers)
	}
	if !got.TTL.Equal(entry.TTL) || !got.SoftTTL.Equal(entry.SoftTTL) {
		t.Fatalf("Expiry is %v / %v", got.TTL, got.SoftTTL)
	}
	if got.IsExpired() || got.RefreshNeeded() {
		t.Fatal("Entry should be fresh")
	}

	// returned entries are copies
	got.Data[0] = 'X'
	again, _ := store.Get("GET:/items")
	if again.Data[0] != '{' {
		t.Fatal("Stored entry was mutated through a returned copy")
	}

	if err := store.Put("GET:/other", entry); err != nil {
		t.Fatal(err)
	}
	if err := store.Put("POST:/items", entry); err != nil {
		t.Fatal(err)
	}
	var keys []string
	if err := store.Keys("GET:", func(k string) { keys = append(keys, k) }); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "GET:/items" || keys[1] != "GET:/other" {
		t.Fatalf("Keys are %v", keys)
	}

	if err := store.Remove("GET:/items"); err != nil {
		t.Fatal(err)
	}
	if entry, _ := store.Get("GET:/items"); entry != nil {
		t.Fatal("Entry should have been removed")
	}
	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if entry, _ := store.Get("GET:/other"); entry != nil {
		t.Fatal("Store should be empty")
	}
}

func TestMemCache(t *testing.T) {
	testStore(t, NewMemCache())
}

func TestSQLiteCache(t *testing.T) {
	store := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	defer store.Close()
	testStore(t, store)
}

func TestPostgresCache(t *testing.T) {
	url := os.Getenv("EASYFETCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("EASYFETCH_TEST_DATABASE_URL not set")
	}
	store := NewPostgresCache(url)
	defer store.Close()
	testStore(t, store)
}

func TestSQLiteLikeEscaping(t *testing.T) {
	store := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	defer store.Close()
	if err := store.Put("a_b", Entry{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put("axb", Entry{}); err != nil {
		t.Fatal(err)
	}
	var keys []string
	store.Keys("a_", func(k string) { keys = append(keys, k) })
	if len(keys) != 1 || keys[0] != "a_b" {
		t.Fatalf("Keys are %v", keys)
	}
}

func TestMemCacheConcurrent(t *testing.T) {
	store := NewMemCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put("k", Entry{Data: []byte{byte(i)}})
			store.Get("k")
		}(i)
	}
	wg.Wait()
	if entry, _ := store.Get("k"); entry == nil {
		t.Fatal("Expected an entry")
	}
}

func TestEntryExpiry(t *testing.T) {
	now := time.Now()
	e := Entry{SoftTTL: now.Add(time.Second), TTL: now.Add(time.Minute)}
	if e.IsExpiredAt(now) || e.RefreshNeededAt(now) {
		t.Fatal("should be fresh")
	}
	if !e.RefreshNeededAt(now.Add(2*time.Second)) || e.IsExpiredAt(now.Add(2*time.Second)) {
		t.Fatal("should need refresh but not be expired")
	}
	if !e.IsExpiredAt(now.Add(2 * time.Minute)) {
		t.Fatal("should be expired")
	}
	if (Entry{}).HasValidator() || !(Entry{ETag: `"x"`}).HasValidator() {
		t.Fatal("validator detection")
	}
}
