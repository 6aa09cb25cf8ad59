// Package artifact owns the on-disk files a dubbing run creates.
//
// Each artifact is tagged Temporary or Keep when it is registered, and
// Lifecycle.Cleanup removes only the Temporary ones. Cleanup never fails the
// run: unexpected deletion errors are logged as cleanup warnings. CleanStale
// sweeps job directories abandoned by crashed runs.
package artifact
