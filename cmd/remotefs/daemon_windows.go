//go:build windows
// +build windows

package main

import "fmt"

func daemonize() error {
	return fmt.Errorf("--daemon is not supported on Windows; use a service manager")
}
