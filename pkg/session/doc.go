/*
Package session keeps stored workflows consistent under concurrent requests.

A Manager wraps a ports.SnapshotStore. Every load, execute and save cycle for
one workflow id runs under a local lock and, when configured, a distributed
lock shared by all replicas.
*/
package session
