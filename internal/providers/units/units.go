// Package units converts between decimal token amounts and base units.
package units

import (
	"fmt"
	"math/big"
	"strings"
)

// EtherDecimals is the number of decimals of native EVM currency.
const EtherDecimals = 18

// Parse converts a decimal string such as "1.5" into base units with the
// given number of decimals. More fractional digits than decimals is an error.
func Parse(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("金额不能为空")
	}
	if strings.HasPrefix(value, "-") {
		return nil, fmt.Errorf("金额不能为负数: %s", value)
	}
	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("金额 %s 的小数位超过 %d 位", value, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("无效的金额: %s", value)
	}
	return out, nil
}

// Format renders base units as a decimal string without trailing zeros.
func Format(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()
	if decimals > 0 {
		if len(digits) <= decimals {
			digits = strings.Repeat("0", decimals-len(digits)+1) + digits
		}
		cut := len(digits) - decimals
		whole, frac := digits[:cut], strings.TrimRight(digits[cut:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}
