package action

import (
	"strings"

	"AgentKit-Chain/internal/web3"
)

// Network identifies the chain an action provider is asked about.
type Network = web3.Network

// NetworkPredicate decides whether a provider supports a network.
type NetworkPredicate func(Network) bool

// AnyNetwork supports every network.
func AnyNetwork() NetworkPredicate {
	return func(Network) bool { return true }
}

// ProtocolFamily supports networks of the given family, e.g. "evm".
func ProtocolFamily(family string) NetworkPredicate {
	return func(n Network) bool {
		return strings.EqualFold(n.ProtocolFamily, family)
	}
}

// NetworkIDs supports exactly the listed network ids.
func NetworkIDs(ids ...string) NetworkPredicate {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(n Network) bool {
		_, ok := set[n.NetworkID]
		return ok
	}
}
