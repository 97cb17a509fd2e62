package config

import "github.com/NodePath81/fbiperf/internal/util"

// Identity is the resolved metadata of one tested server.
type Identity struct {
	Hostname   string
	Port       int
	Provider   string
	ProviderID string
	Service    string
	ServiceID  string
	Region     string
	InstanceID string
	OS         string
}

// ResolveServer fills every identity attribute of srv by walking the fallback
// chain: the server entry, server_defaults, meta.<attr>, meta.compute_<attr>.
func (c Config) ResolveServer(srv ServerConfig) Identity {
	host, port := util.SplitHostPort(srv.Host)
	d := c.ServerDefaults
	return Identity{
		Hostname:   host,
		Port:       port,
		Provider:   util.FirstNonEmpty(srv.Provider, d.Provider, c.Meta.Provider),
		ProviderID: util.FirstNonEmpty(srv.ProviderID, d.ProviderID, c.Meta.ProviderID),
		Service:    util.FirstNonEmpty(srv.Service, d.Service, c.Meta.ComputeService),
		ServiceID:  util.FirstNonEmpty(srv.ServiceID, d.ServiceID, c.Meta.ComputeServiceID),
		Region:     util.FirstNonEmpty(srv.Region, d.Region, c.Meta.Region),
		InstanceID: util.FirstNonEmpty(srv.InstanceID, d.InstanceID, c.Meta.InstanceID),
		OS:         util.FirstNonEmpty(srv.OS, d.OS, c.Meta.OS),
	}
}
