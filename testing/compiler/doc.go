/*
Package compiler builds the small Go programs that tests use as a stand-in service
and client. Binaries are written to a temporary directory that Cleanup removes.
*/
package compiler
