// Package unix runs the framed base transport over Unix domain sockets, for a
// client and server on the same machine. The endpoint is the socket path; a stale
// socket file left by a crashed server is removed before listening.
//
// The server uses 64 KB frame buffers. Socket tuning options of the tcp transport
// do not apply.
package unix
