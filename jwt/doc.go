// Package jwt issues and verifies the first-party access tokens handed out
// after a successful social sign-in.
//
// Tokens carry the local username as subject plus uid, name, avatar and
// provider claims. The same Manager validates tokens presented back on
// protected requests.
package jwt
