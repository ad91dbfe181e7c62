// Package hcloud resolves Hetzner Cloud servers to the address petprov
// connects to over SSH.
//
// A plan may name its target by server name (target.hcloud_server) instead
// of a host. The resolver looks the server up through the Hetzner Cloud API
// and returns its public IPv4 address, falling back to IPv6. Lookups retry
// on rate limiting and lock errors; a missing server is fatal.
//
// The API token is read from HCLOUD_TOKEN.
package hcloud
