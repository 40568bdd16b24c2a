package plugin

import xerrors "AgentKit-Chain/internal/errors"

const (
	CodePluginInvalid          xerrors.Code = "PLUGIN_INVALID"
	CodePluginLoadFailed       xerrors.Code = "PLUGIN_LOAD_FAILED"
	CodePluginNotFound         xerrors.Code = "PLUGIN_NOT_FOUND"
	CodePluginCapabilityDenied xerrors.Code = "PLUGIN_CAPABILITY_DENIED"
	CodePluginLifecycle        xerrors.Code = "PLUGIN_LIFECYCLE_FAILED"
)

func init() {
	xerrors.Register(CodePluginInvalid, xerrors.Attributes{Message: "invalid plugin", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodePluginLoadFailed, xerrors.Attributes{Message: "plugin load failed", Severity: xerrors.SeverityCritical, Alert: true})
	xerrors.Register(CodePluginNotFound, xerrors.Attributes{Message: "plugin not registered", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodePluginCapabilityDenied, xerrors.Attributes{Message: "plugin capability denied", Severity: xerrors.SeverityWarning, Alert: true})
	xerrors.Register(CodePluginLifecycle, xerrors.Attributes{Message: "plugin lifecycle failure", Severity: xerrors.SeverityWarning, Alert: true})
}
