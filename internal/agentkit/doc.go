// Package agentkit is the dispatch facade: it binds one wallet provider to
// the configured action providers, filters them by network and invokes
// actions by name.
package agentkit
