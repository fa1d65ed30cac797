// Package geo annotates client addresses with their country.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Locator resolves an address to an ISO country code.
type Locator interface {
	Country(addr string) string
}

// GeoIP looks addresses up in a MaxMind country or city database.
type GeoIP struct {
	reader *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*GeoIP, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &GeoIP{reader: reader}, nil
}

// Country returns the ISO code for addr, or "" when unknown. addr may carry
// trailing text after the address, e.g. "203.0.113.7 - Example ISP".
func (g *GeoIP) Country(addr string) string {
	ip := ParseIP(addr)
	if ip == nil {
		return ""
	}
	record, err := g.reader.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the database.
func (g *GeoIP) Close() error {
	return g.reader.Close()
}

// ParseIP extracts the leading IP address of addr.
func ParseIP(addr string) net.IP {
	fields := strings.Fields(addr)
	if len(fields) == 0 {
		return nil
	}
	return net.ParseIP(fields[0])
}
