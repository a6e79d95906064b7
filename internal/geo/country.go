// Package geo resolves login origins to ISO country codes for the IP logs view.
package geo

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Unknown is returned when no country can be resolved.
const Unknown = "N/A"

// CountryResolver looks addresses up in a GeoLite2-Country database.
// A resolver without a database answers Unknown for everything.
type CountryResolver struct {
	reader *geoip2.Reader
}

// NewCountryResolver opens the database at path. An empty path yields a
// resolver that always answers Unknown.
func NewCountryResolver(path string, logger *slog.Logger) (*CountryResolver, error) {
	if path == "" {
		logger.Info("no GeoIP database configured, country lookups disabled")
		return &CountryResolver{}, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	return &CountryResolver{reader: reader}, nil
}

// CountryCode returns the ISO code for address, or Unknown.
func (r *CountryResolver) CountryCode(address string) string {
	if r == nil || r.reader == nil {
		return Unknown
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return Unknown
	}

	record, err := r.reader.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return Unknown
	}

	return record.Country.IsoCode
}

func (r *CountryResolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
