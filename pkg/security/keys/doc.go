// Package keys provides key custody for archive encryption and audit
// chain signing.
//
// A master key is sourced from the environment or a file and never leaves
// the process. Each archive gets a fresh 256-bit data key; the keyring
// wraps it with the master key and persists the wrapped form under a key
// ID before any encrypted payload is written. Decryption resolves the key
// ID back through the keyring, so losing the process does not lose the
// ability to restore archives.
//
// When watching is enabled, the keyring picks up externally rotated or
// restored key files without a restart.
package keys
