// Package identity implements the account and token core of the user
// service: resource-owner-password credential validation, claim
// allocation, profile re-derivation, and persisted-grant storage.
//
// Credential validation:
//   - CredentialValidator decides a single authentication attempt
//     against a UserStore. Unknown identifiers and wrong passwords are
//     indistinguishable in the result; collaborator failures surface as
//     errors, never as rejections.
//   - BuildClaims allocates the claim set attached to an acceptance,
//     and ProfileEnricher rebuilds it from current user state whenever
//     a resource server asks again.
//
// Grants:
//   - PersistedGrantStore keeps issued token artifacts in a GrantCache
//     (redis in production, see the cache package) with lazy expiry on
//     every read and a subject+client index for bulk revocation.
//   - TokenService signs access tokens for accepted validations and
//     rotates refresh token grants through the store.
//
// Commands:
//   - RegisterUserMessage flows through the cqrs dispatcher to
//     RegisterUserHandler, which hashes the password and commits the
//     account in one transaction.
package identity
