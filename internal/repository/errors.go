// Package repository implements the record store: durable persistence of
// passes, scans, sponsors and powered-by branding, plus the serial counter.
// Two backends exist.  JSONStore rewrites a single JSON document on every
// mutation; MySQLStore keeps the same records in relational tables.
package repository

import "errors"

// ErrAlreadyScanned is returned by AddScan when the backend itself detects
// a second scan for the same serial.  The lifecycle manager checks for an
// existing scan first, so this only surfaces when two processes share one
// database.
var ErrAlreadyScanned = errors.New("pass already scanned")

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("store closed")
