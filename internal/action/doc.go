// Package action defines how capabilities are declared, validated and bound
// to a wallet provider. Providers embed Base, declare each action with a
// Definition and a Signature, and hand out bound Actions per wallet.
package action
