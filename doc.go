// Package presale provides an embeddable settlement engine for pre-event
// token sales.
//
// Presale is designed as a library, not a service. Import it directly
// into your Go application to run the full lifecycle of a sale whose
// price discovery happens off-platform: capital collection, replay-safe
// authorization, refunds, token-terms publication, and per-investor
// settlement with vesting.
//
// # Quick Start
//
// Create an engine instance with your preferred store:
//
//	import (
//	    "github.com/xraph/presale"
//	    "github.com/xraph/presale/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	eng := presale.New(store,
//	    presale.WithTokens(bank),
//	    presale.WithVestingFactory(factory),
//	)
//
//	// Start the engine (runs migrations, initializes plugins)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// A sale is configured once and then driven through its phases:
//
//	sl, err := eng.Initialize(ctx, config.SaleConfig{
//	    ChainID:   "mainnet",
//	    BidToken:  usdc,
//	    Treasury:  treasury,
//	    Project:   project,
//	    Bouncer:   operator,
//	    ...
//	}, vesting.Terms{Duration: 365 * 24 * time.Hour})
//
// Investors present signed tickets from the trusted signer; every
// ticket is single-use:
//
//	pos, err := eng.Invest(ctx, investor, amount, ticket)
//
// After the sale ends and the refund window closes, the operator
// publishes the token terms, the project supplies the allocation, and
// investors settle:
//
//	pos, err := eng.ClaimAllocation(ctx, investor, claimTicket)
//
// # Safety Model
//
// All amounts use integer arithmetic over arbitrary-precision values,
// with no floating point anywhere. Entitlement rates and release fractions
// are wad fixed-point fractions (1e18 = 100%).
//
// Every operation commits its ledger effects before calling any
// external collaborator (token transfers, the vesting factory), and the
// engine's lock is never held across those calls. Reentrant callbacks
// are rejected by the already-committed state, and a failed external
// call discards the operation via snapshot rollback.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sale_01h2xcejqtf2nbrexx3vqjhp41  // Sale ID
//	pos_01h2xcejqtf2nbrexx3vqjhp41   // Position ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package presale
