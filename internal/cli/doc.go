// Package cli holds the cobra commands behind the gosocialauth binary.
//
// Every command reads its configuration from GOSOCIALAUTH_* environment
// variables: the engine settings through goSocialAuth.LoadConfigFromEnv and
// the process wiring (listen address, Redis, identity store, mail transport,
// logging) through LoadServerConfig.
//
// # Commands
//
//   - serve      run the HTTP API until SIGINT or SIGTERM
//   - migrate    apply the identity store schema
//   - token      sign an access token for an existing user
//   - providers  list the providers that have credentials configured
package cli
