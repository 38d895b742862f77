// Package register implements the Register Context: a per-turn, mutable
// key-to-typed-value store shared across tool calls within one dialog turn.
// Registers let one tool pass a validated value (an address, a raw token
// amount) to a later tool in the same turn without round-tripping it
// through free-form text.
package register

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/haasonsaas/stark/pkg/models"
)

// ErrTypeMismatch is returned when Set is called for a key already holding
// a value of a different Kind without an intervening Clear.
var ErrTypeMismatch = fmt.Errorf("register: type mismatch")

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var zeroAddress = strings.Repeat("0", 40)

// Context is one dispatcher turn's register set. It is not safe for
// concurrent use; the dispatcher owns exactly one Context per in-flight
// turn and never shares it across goroutines.
type Context struct {
	values map[string]models.RegisterValue
}

// New returns an empty register context for a fresh turn.
func New() *Context {
	return &Context{values: make(map[string]models.RegisterValue)}
}

// Get returns the value stored at name, or false if unset.
func (c *Context) Get(name string) (models.RegisterValue, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Set stores v at name. If name already holds a value of a different Kind,
// Set fails with ErrTypeMismatch; callers must Clear first to change type.
func (c *Context) Set(name string, v models.RegisterValue) error {
	if existing, ok := c.values[name]; ok && existing.Kind != v.Kind {
		return ErrTypeMismatch
	}
	c.values[name] = v
	return nil
}

// Clear removes any value stored at name.
func (c *Context) Clear(name string) {
	delete(c.values, name)
}

// Snapshot returns a shallow copy of the register set, for event emission
// and for serialising the minimal resume state into a pending confirmation.
func (c *Context) Snapshot() map[string]models.RegisterValue {
	out := make(map[string]models.RegisterValue, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Restore replaces the context's contents with a previously captured
// snapshot, used when resuming a turn from a pending_confirmation.
func (c *Context) Restore(snapshot map[string]models.RegisterValue) {
	c.values = make(map[string]models.RegisterValue, len(snapshot))
	for k, v := range snapshot {
		c.values[k] = v
	}
}

// SetAddress validates addr as a 20-byte hex-prefixed address, rejects the
// zero address, and stores it at name with RegisterAddress kind.
func (c *Context) SetAddress(name, addr string) error {
	if !hexAddressRe.MatchString(addr) {
		return fmt.Errorf("register: %q is not a 20-byte hex-prefixed address", addr)
	}
	if strings.EqualFold(addr[2:], zeroAddress) {
		return fmt.Errorf("register: zero address is not a valid destination")
	}
	return c.Set(name, models.RegisterValue{Kind: models.RegisterAddress, Address: addr})
}

// ToRawAmount converts a human-readable decimal amount string to its raw
// integer representation at the given number of decimals, using exact
// arbitrary-precision arithmetic — never a floating-point path — and
// stores the result at name with RegisterRawInteger kind.
func (c *Context) ToRawAmount(name, human string, decimals int) error {
	raw, err := toRawAmount(human, decimals)
	if err != nil {
		return err
	}
	return c.Set(name, models.RegisterValue{Kind: models.RegisterRawInteger, Raw: raw})
}

// toRawAmount multiplies human (a decimal string like "0.01") by
// 10^decimals exactly, splitting on the decimal point and right-padding the
// fractional part with zeros rather than ever converting through float64.
// An amount with more fractional digits than decimals is rejected.
func toRawAmount(human string, decimals int) (string, error) {
	human = strings.TrimSpace(human)
	if human == "" {
		return "", fmt.Errorf("register: empty amount")
	}
	neg := false
	if strings.HasPrefix(human, "-") {
		neg = true
		human = human[1:]
	}

	intPart := human
	fracPart := ""
	if i := strings.IndexByte(human, '.'); i >= 0 {
		intPart = human[:i]
		fracPart = human[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", fmt.Errorf("register: %q is not a valid decimal amount", human)
	}
	if len(fracPart) > decimals {
		return "", fmt.Errorf("register: amount %q has more precision than %d decimals", human, decimals)
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	combined := intPart + fracPart
	value, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return "", fmt.Errorf("register: could not parse %q as an integer", combined)
	}
	if neg {
		value.Neg(value)
	}
	return value.String(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
