// Package web3 defines the wallet provider capability surface shared by
// action providers, together with network identities and the networks.yaml
// loader. Concrete EVM wallets live in the ethereum subpackage and the
// provider subpackage assembles one wallet per configured network.
package web3
