// Package mixer implements the on-chain core of a privacy-preserving value
// pool: deposits enter as opaque commitments in an append-only Merkle tree,
// withdrawals are authorized against zero-knowledge proofs of membership
// without revealing which commitment is spent.
//
// Overview:
//   - Incremental Merkle tree engine with O(depth) working state (the tree is
//     never materialized; only the cached right frontier is stored)
//   - Rolling window of recent roots so proofs built against a slightly stale
//     root remain valid while other transactions land
//   - Nullifier registry enforcing exactly-once spending of each commitment
//   - Deposit and withdraw protocols binding externally verified proofs to
//     these structures
//
// Security Model:
//   - MiMC over the deployment curve for all tree hashing (see NewMimcF)
//   - Proof verification is delegated to an out-of-process verifier; the pool
//     only checks that a call was countersigned by the configured verifier
//     identity (see the Signer checks in Deposit and Withdraw)
//   - Each mutating call commits all of its storage writes in one atomic
//     batch; there are no partially applied insertions
//
// Usage:
//   - Build a deployment Config with NewConfig or DefaultConfig
//   - Open a Store (see internal/storage), create a Pool with NewPool,
//     initialize it once with Init, then drive it with Deposit and Withdraw
package mixer
