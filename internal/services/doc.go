// Package services holds the engine: the Reconciler that merges catalog
// snapshots into the store, the Lifecycle manager for the recycle bin, the
// favorite/hidden Overlay, the query facade and the Library that ties them
// together for transports.
package services
