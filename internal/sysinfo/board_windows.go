//go:build windows

package sysinfo

import "github.com/StackExchange/wmi"

// Win32_BaseBoard identifies the mainboard this server is controlling.
type Win32_BaseBoard struct {
	Manufacturer string
	Product      string
}

func boardName() string {
	var boards []Win32_BaseBoard
	if err := wmi.Query("SELECT Manufacturer, Product FROM Win32_BaseBoard", &boards); err != nil {
		return ""
	}
	if len(boards) == 0 {
		return ""
	}
	if boards[0].Manufacturer == "" {
		return boards[0].Product
	}
	return boards[0].Manufacturer + " " + boards[0].Product
}
