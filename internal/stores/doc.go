// Package stores provides the Redis-backed store for pending social sign-ins:
// external profiles parked under a random session id until the user confirms
// the mailed code.
//
// # Design
//
// Records are versioned and binary encoded (uint16 length-prefixed strings)
// and written with a TTL. The expiry is also stored inside the record so a
// record read after its deadline is rejected even if Redis has not evicted it
// yet.
//
// # What this package must NOT do
//
//   - Import goSocialAuth or the flows package.
//   - Generate session ids or confirmation codes.
//   - Log stored profiles; they carry provider access tokens.
package stores
