// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import "fmt"

// DeepValidate runs Validate plus cross-reference checks between blocks:
// VS group references, a sorry_server duplicating a real_server endpoint,
// and a local address repeated on the same iface.
func (c *Config) DeepValidate() ValidationErrors {
	errs := c.Validate()
	errs = append(errs, c.validateCrossReferences()...)
	return errs
}

func (c *Config) validateCrossReferences() ValidationErrors {
	var errs ValidationErrors

	groupMap := make(map[string]*VSGroup, len(c.VSGroups))
	for i := range c.VSGroups {
		groupMap[c.VSGroups[i].Name] = &c.VSGroups[i]
	}

	for i, vs := range c.VirtualServers {
		field := fmt.Sprintf("virtual_server[%s]", vs.ID)
		if vs.ID == "" {
			field = fmt.Sprintf("virtual_server[%d]", i)
		}

		if vs.GroupRef != "" {
			if _, ok := groupMap[vs.GroupRef]; !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".group",
					Message: fmt.Sprintf("vs_group %q does not exist", vs.GroupRef),
				})
			}
		}

		if vs.SorryServer != nil {
			for _, rs := range vs.RealServers {
				if rs.Addr == vs.SorryServer.Addr && rs.Port == vs.SorryServer.Port {
					errs = append(errs, ValidationError{
						Field:   field + ".sorry_server",
						Message: "sorry_server must not duplicate a real_server endpoint",
					})
				}
			}
		}

		ifaceAddrs := make(map[string]bool)
		for _, la := range vs.LocalAddresses {
			key := la.Iface + "|" + la.Addr
			if ifaceAddrs[key] {
				errs = append(errs, ValidationError{
					Field:   field + ".local_address",
					Message: fmt.Sprintf("address %s repeated on iface %s", la.Addr, la.Iface),
				})
			}
			ifaceAddrs[key] = true
		}
	}

	return errs
}
