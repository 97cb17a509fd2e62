// Package geo annotates peer addresses from a MaxMind database.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// Peer is the annotation of one peer address. Zero values mean unknown.
type Peer struct {
	Country string
	ASN     uint
	ASOrg   string
}

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
	ASN   uint   `maxminddb:"autonomous_system_number"`
	ASOrg string `maxminddb:"autonomous_system_organization"`
}

// Resolver looks up peers. A nil *Resolver is disabled and returns no data.
type Resolver struct {
	db *maxminddb.Reader
}

// Open opens the database at path. An empty path returns a nil Resolver.
func Open(path string) (*Resolver, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Resolver{db: db}, nil
}

// Lookup annotates addr, which may carry a port or brackets. Unparseable
// addresses and misses return ok=false.
func (r *Resolver) Lookup(addr string) (Peer, bool) {
	if r == nil || r.db == nil {
		return Peer{}, false
	}
	ip := parseIP(addr)
	if ip == nil {
		return Peer{}, false
	}
	var rec record
	if err := r.db.Lookup(ip, &rec); err != nil {
		return Peer{}, false
	}
	peer := Peer{
		Country: rec.Country.ISOCode,
		ASN:     rec.ASN,
		ASOrg:   rec.ASOrg,
	}
	if peer.Country == "" {
		peer.Country = rec.RegisteredCountry.ISOCode
	}
	if peer == (Peer{}) {
		return Peer{}, false
	}
	return peer, true
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func parseIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	return net.ParseIP(addr)
}
