//go:build !windows

package sysinfo

func boardName() string { return "" }
