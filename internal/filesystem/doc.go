/*
Package filesystem performs the physical side of every media mutation: copy,
move, delete, rename and hide. It never touches the metadata index.

# Backends

Every operation goes through a Storage backend chosen per path by a Selector:

  - DirectStorage uses plain file descriptors (afero.OsFs).
  - TreeStorage only reaches paths below a granted root (afero.BasePathFs)
    and returns ErrPermissionDenied for anything outside it.

Locations listed as restricted (removable cards, OTG drives) must be served by
a granted tree; all other paths use direct access.

	sel := filesystem.NewSelector(filesystem.NewDirectStorage(),
	    []string{"/storage/card"}, filesystem.NewTreeStorage("/storage/card"))
	mover := filesystem.NewMover(sel, filesystem.MoverOptions{KeepLastModified: true})

# Move semantics

Move renames when both paths share a backend. Otherwise it copies, confirms the
copy has the source's size and only then removes the source. A failed copy
removes the partial destination and leaves the source untouched.

# Retry Behavior

Stat and open wrap the backend call in an exponential backoff loop that
retries only NFS stale file handle errors (ESTALE):
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors fail immediately.

Metrics are reported through an Observer installed with SetObserver; the
metrics package provides the Prometheus implementation.
*/
package filesystem
