/*
Package harness drives one end to end run: launch the service, wait for it to be
ready, run the client against it, interrupt the service and report how it exited.

Every phase runs in its own span and records the harness.phase timing metric. Once
launched, the service is released on every path out of Run, so a failing client or
a canceled context never leaves it running.
*/
package harness
