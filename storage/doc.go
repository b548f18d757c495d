// Package storage groups the persistent identity.Store backends.
//
// storage/sqlite embeds a single-file database for single-node deployments;
// storage/postgres serves shared deployments. Both apply their embedded
// migrations on demand and map driver errors to the identity sentinels.
package storage
