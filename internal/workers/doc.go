/*
Package workers sizes worker pools and runs background tasks.

# Worker counts

Count, ForCPU and ForIO derive pool sizes from GOMAXPROCS, which follows
container CPU limits, rather than runtime.NumCPU, which reports host CPUs.
CURATOR_WORKERS pins the count.

# Tasks

Submit runs a function on a Runner and returns a Task handle whose Wait
yields the function's result. Each task gets a UUID so HTTP clients can poll
it through Runner.Status. Panics are recovered into errors so a failing
operation never takes the process down.

	task := workers.Submit(runner, "trash", func(ctx context.Context) (*recyclebin.BatchResult, error) {
	    return mgr.Trash(ctx, paths), nil
	})
	res, err := task.Wait(ctx)

ForEach fans a slice out over a bounded set of goroutines and returns only
after every item has been processed.
*/
package workers
