/*
Package session implements session checkout and persistence orchestration.

A Manager serializes access to each session key: at most one Lease for a key is
outstanding at any time within the process, and an optional DistributedLocker
extends that guarantee across replicas sharing a store. Acquire waits at most the
configured lock timeout and then fails with domain.ErrLockTimeout.
*/
package session
