// Package replay defines the consumed-signature record. The replay set
// ties protection to the exact signed payload rather than a nonce
// counter, matching an off-chain issuance model with no central
// sequencing authority.
package replay

import (
	"time"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// Consumption marks one (account, signature) pair as spent. The set is
// monotonic: a committed consumption is never unmarked.
type Consumption struct {
	SaleID       id.SaleID     `json:"sale_id"`
	Account      types.Account `json:"account"`
	SignatureHex string        `json:"signature_hex"`
	ConsumedAt   time.Time     `json:"consumed_at"`
}
