// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP middleware stack of the scan console.
package middleware
