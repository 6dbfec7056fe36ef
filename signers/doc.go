// Package signers provides convenience constructors for creating Signer implementations.
//
// It offers two patterns:
//   - FromSecret: Wraps a Stellar secret key (S...) using stellar/go keypair for signing.
//     Intended for CLIs, bots and tests that hold the key locally.
//   - FromCallback: Wraps a custom signing function (e.g., hardware wallet, custodial API).
//     Allows you to delegate signing to any external infrastructure.
//
// Both return implementations of the walletsdk.Signer interface.
package signers
