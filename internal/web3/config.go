package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NetworkDefinitions models the structure of configs/networks.yaml.
type NetworkDefinitions struct {
	Networks map[string]NetworkDefinition `yaml:"networks"`
}

// NetworkDefinition describes a single network endpoint definition.
type NetworkDefinition struct {
	ProtocolFamily string `yaml:"protocol_family"`
	NetworkID      string `yaml:"network_id"`
	ChainID        string `yaml:"chain_id"`
	RPCURL         string `yaml:"rpc_url"`
	Description    string `yaml:"description"`
}

// Network converts the definition into the runtime identity. The map key is
// used when network_id is omitted.
func (d NetworkDefinition) Network(name string) Network {
	family := strings.ToLower(strings.TrimSpace(d.ProtocolFamily))
	if family == "" {
		family = ProtocolFamilyEVM
	}
	id := strings.TrimSpace(d.NetworkID)
	if id == "" {
		id = name
	}
	return Network{ProtocolFamily: family, NetworkID: id, ChainID: strings.TrimSpace(d.ChainID)}
}

// LoadNetworkDefinitions parses the YAML file containing network metadata.
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return NetworkDefinitions{Networks: map[string]NetworkDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinitions{}, fmt.Errorf("读取网络配置失败: %w", err)
	}

	var defs NetworkDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("解析网络配置失败: %w", err)
	}
	if defs.Networks == nil {
		defs.Networks = map[string]NetworkDefinition{}
	}
	for name, def := range defs.Networks {
		if strings.TrimSpace(def.RPCURL) == "" {
			return NetworkDefinitions{}, fmt.Errorf("网络 %s 未配置 rpc_url", name)
		}
	}
	return defs, nil
}
