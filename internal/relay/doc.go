// Package relay copies data in both directions between two connections,
// passing every chunk through a per-direction list of stream functions.
//
// Each direction half-closes independently: when one side finishes sending,
// the other direction keeps flowing until it finishes too.
package relay
