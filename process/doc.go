/*
Package process owns the service under test for the length of one harness run.

Launch starts the service with stdin on a pipe and stdout/stderr drained into a
buffer, so the service can never block on a full pipe however much it writes.
The returned Service moves through Spawned, Running, Signaled and Exited. Stop
sends a graceful interrupt and waits for the exit, optionally bounded by a
timeout after which the process is killed. Release must be deferred straight
after a successful Launch; it brings a still running service down on every exit
path so a failed run never leaks the child process.
*/
package process
