// Package registry tracks every configured session.Session under a single
// store, keyed by session.ID, and drives their lifecycle: periodic Tick,
// dial-and-reconnect for initiators, and acceptor dispatch of inbound
// connections to the session whose reversed identity matches the peer's
// Logon.
package registry
