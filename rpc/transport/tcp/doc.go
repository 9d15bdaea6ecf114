// Package tcp runs the framed base transport over TCP.
//
// Both sides apply the socket options from the configuration (TCP_NODELAY,
// keep-alive, socket buffer sizes); the server also applies SO_LINGER, where -1
// keeps the system default and 0 drops unsent data on close. The server pools
// 512 KB frame buffers; larger frames get a buffer of their own.
package tcp
