// Package ssh runs provisioning commands on a remote host over SSH.
//
// The Client implements host.Executor. It authenticates with a private key,
// verifies the server against a known_hosts file unless explicitly told not
// to, and retries the initial dial with exponential backoff so a freshly
// booted server has time to come up. The connection is reused for every
// command of a run.
package ssh
