package types

// Account identifies an on-network account or asset: an investor, the
// project admin, a token, or a vesting schedule instance. Presale treats
// accounts as opaque strings; it never derives or parses them.
type Account string

// ZeroAccount is the empty account, used as "not yet assigned".
const ZeroAccount Account = ""

// IsZero reports whether the account is unassigned.
func (a Account) IsZero() bool { return a == ZeroAccount }

// String returns the raw account string.
func (a Account) String() string { return string(a) }
