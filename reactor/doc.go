// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the core poll-mode event reactor abstraction:
// an EventReactor primitive (epoll on Linux, poll(2) elsewhere) plus the
// Link callback shape the ready loop dispatches through.
package reactor
