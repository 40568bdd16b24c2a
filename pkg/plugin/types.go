package plugin

// Capability expresses host facilities a plugin's actions need.
type Capability string

const (
	// CapabilityWallet allows actions to sign and send transactions with the bound wallet.
	CapabilityWallet Capability = "wallet"
	// CapabilityNetwork allows actions to reach external HTTP services.
	CapabilityNetwork Capability = "network"
	// CapabilityFilesystem grants a private working directory under the runtime data dir.
	CapabilityFilesystem Capability = "filesystem"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Author       string       `json:"author"`
	Version      string       `json:"version"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Has reports whether the plugin declared c.
func (i Info) Has(c Capability) bool {
	for _, declared := range i.Capabilities {
		if declared == c {
			return true
		}
	}
	return false
}

// State represents the lifecycle position of a plugin instance.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialised State = "initialised"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
)
