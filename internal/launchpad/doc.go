// Package launchpad implements the bonding-curve launch engine for wrapped
// royalty assets.
//
// A creator locks a source (royalty) asset and the engine mints a wrapper
// asset against it at a fixed ratio: 5% goes to the creator, 20% is held back
// for the post-graduation pool and 75% is sold along a linear curve. Trades pay
// a 1% fee split between the treasury and the creator. Harvested royalty
// revenue is added to the curve reserve. Once the market cap reaches the
// graduation threshold the curve is closed and its reserves seed a
// constant-product pool whose LP position is sent to the burn address.
//
// Every state-changing operation runs under a single engine lock inside a
// transaction that rolls back engine state and custody together on any error.
package launchpad
