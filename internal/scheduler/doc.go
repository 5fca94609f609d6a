// Package scheduler resolves which test groups run and in what order, then
// drives them against the live system.
//
// Groups are registered once with declared dependencies. A selection is
// expanded to its dependency closure and executed in a topological walk,
// ties broken by registration order so runs are reproducible. The union of
// the selected groups' requirements is satisfied once up front: login, a
// scratch project, a scratch collection, each skipped when the caller's
// RunContext already provides it.
package scheduler
