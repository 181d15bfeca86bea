package geo

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// Info holds geographic information for an IP.
type Info struct {
	Country     string
	CountryCode string
	Region      string
	City        string
}

// Provider interface for IP geolocation.
type Provider interface {
	Lookup(ip string) (*Info, error)
	Close() error
}

// MaxMindProvider implements Provider using a MaxMind GeoLite2 database.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// NewMaxMindProvider opens the GeoLite2 database at dbPath.
func NewMaxMindProvider(dbPath string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

// Lookup returns geo information for an IP address.
func (m *MaxMindProvider) Lookup(ip string) (*Info, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}

	record, err := m.reader.City(parsedIP)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].Names["en"]
	}
	if record.City.Names["en"] != "" {
		info.City = record.City.Names["en"]
	}
	return info, nil
}

// Close closes the GeoIP database.
func (m *MaxMindProvider) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// Resolver wraps a Provider with a TTL cache. It tolerates a nil provider
// and lookup failures by returning nil; geo enrichment is best effort.
type Resolver struct {
	provider Provider

	mu      sync.RWMutex
	cache   map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	info      *Info
	expiresAt time.Time
}

// NewResolver creates a caching resolver around provider.
func NewResolver(provider Provider, cacheSize int, ttl time.Duration) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    make(map[string]*cacheEntry),
		maxSize:  cacheSize,
		ttl:      ttl,
	}
}

// Resolve returns geo info for the IP, or nil if unknown.
func (r *Resolver) Resolve(ip string) *Info {
	if r.provider == nil || ip == "" {
		return nil
	}

	r.mu.RLock()
	entry, ok := r.cache[ip]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.info
	}

	info, err := r.provider.Lookup(ip)
	if err != nil {
		return nil
	}

	r.mu.Lock()
	if len(r.cache) >= r.maxSize {
		// Full cache: drop everything rather than track LRU order.
		r.cache = make(map[string]*cacheEntry)
	}
	r.cache[ip] = &cacheEntry{info: info, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return info
}

// Close releases the underlying provider.
func (r *Resolver) Close() error {
	if r.provider != nil {
		return r.provider.Close()
	}
	return nil
}
