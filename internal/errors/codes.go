package errors

// 动作注册与调度相关的错误码。
const (
	CodeActionDefinitionInvalid Code = "ACTION_DEFINITION_INVALID"
	CodeActionValidationFailed  Code = "ACTION_VALIDATION_FAILED"
	CodeActionNotFound          Code = "ACTION_NOT_FOUND"
	CodeActionWalletMissing     Code = "ACTION_WALLET_MISSING"
	CodeProviderEmpty           Code = "AGENTKIT_PROVIDER_EMPTY"
	CodeDuplicateAction         Code = "AGENTKIT_DUPLICATE_ACTION"
)

// 钱包与链交互相关的错误码。
const (
	CodeWalletReceiptTimeout Code = "WALLET_RECEIPT_TIMEOUT"
	CodeWalletRPCFailure     Code = "WALLET_RPC_FAILURE"
)

func init() {
	Register(CodeActionDefinitionInvalid, Attributes{Message: "invalid action definition", Severity: SeverityCritical})
	Register(CodeActionValidationFailed, Attributes{Message: "action arguments failed validation", Severity: SeverityInfo})
	Register(CodeActionNotFound, Attributes{Message: "action not found", Severity: SeverityInfo})
	Register(CodeActionWalletMissing, Attributes{Message: "action requires a wallet provider", Severity: SeverityWarning})
	Register(CodeProviderEmpty, Attributes{Message: "action provider has no registered actions", Severity: SeverityCritical})
	Register(CodeDuplicateAction, Attributes{Message: "duplicate action name", Severity: SeverityCritical})
	Register(CodeWalletReceiptTimeout, Attributes{Message: "transaction receipt not available in time", Severity: SeverityWarning, Retryable: true, Alert: true})
	Register(CodeWalletRPCFailure, Attributes{Message: "wallet rpc failure", Severity: SeverityWarning, Retryable: true})
}
