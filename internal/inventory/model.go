package inventory

import (
	"sort"
	"strings"
)

// Record describes one host as returned by an inventory provider.
type Record struct {
	Certname string
	Facts    map[string]interface{}
	Classes  []string
}

// ClassSet returns the record classes sorted and without duplicates or
// blank names.
func (r *Record) ClassSet() []string {
	seen := make(map[string]struct{}, len(r.Classes))
	classes := make([]string, 0, len(r.Classes))

	for _, c := range r.Classes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		classes = append(classes, c)
	}

	sort.Strings(classes)

	return classes
}

// NodeEntry describes a normalized, manageable host. Empty standard fields
// are unset and left to the consumer's defaults.
type NodeEntry struct {
	Hostname    string
	Username    string
	Description string
	Nodename    string
	OsArch      string
	OsFamily    string
	OsName      string
	OsVersion   string
	Attributes  map[string]string
	Tags        []string
}

// Name returns the node name, falling back to the hostname.
func (n *NodeEntry) Name() string {
	if n.Nodename != "" {
		return n.Nodename
	}

	return n.Hostname
}

// StandardAttributes returns the set standard fields keyed by their
// resource attribute names.
func (n *NodeEntry) StandardAttributes() map[string]string {
	attrs := map[string]string{}

	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}

	set("hostname", n.Hostname)
	set("username", n.Username)
	set("description", n.Description)
	set("nodename", n.Name())
	set("osArch", n.OsArch)
	set("osFamily", n.OsFamily)
	set("osName", n.OsName)
	set("osVersion", n.OsVersion)

	return attrs
}
