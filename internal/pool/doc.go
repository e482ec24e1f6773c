// Package pool holds the current set of delivery nodes and publishes an
// immutable ring snapshot for every change. Readers load the snapshot once
// per request and never take a lock; writers serialize among themselves.
package pool
