//
//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2023 THL A29 Limited, a Tencent company.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package metrics provides the daemon's process-wide runtime counters:
// events forwarded, writes to outputs, poll wakeups, dropped writes,
// hotkey matches and executed commands, in the same
// atomic-counter-array shape as tnet/metrics.
package metrics

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// All metrics definitions.
const (
	// EventsForwarded counts DeviceEvent frames written to the current output.
	EventsForwarded = iota
	// FramesWritten counts every successful write call to any output.
	// A fixed frame is one write; an AddDevice payload adds one write per
	// field it encodes, so this is not a count of whole packets.
	FramesWritten
	// PollWakeups counts returns from the poller's epoll_wait.
	PollWakeups
	// DroppedWrites counts output writes that failed and caused the
	// output to be removed.
	DroppedWrites
	// HotkeyMatches counts input events that matched a hotkey and were
	// suppressed from forwarding.
	HotkeyMatches
	// CommandsExecuted counts commands drained from the command queue.
	CommandsExecuted
	Max
)

var metrics [Max]atomic.Uint64

// Add metrics counter.
func Add(name int, delta uint64) {
	if name >= Max {
		return
	}
	metrics[name].Add(delta)
}

// Get one metric counter.
func Get(name int) uint64 {
	if name >= Max {
		return 0
	}
	return metrics[name].Load()
}

// GetAll get all metrics.
func GetAll() [Max]uint64 {
	var m [Max]uint64
	for i := range metrics {
		m[i] = metrics[i].Load()
	}
	return m
}

// ShowMetricsOfPeriod shows metric info of duration d from now on.
// It will block d duration, and then prints metrics info.
func ShowMetricsOfPeriod(d time.Duration) {
	old := GetAll()
	<-time.After(d)
	cur := GetAll()
	var m [Max]uint64
	for i := range metrics {
		m[i] = cur[i] - old[i]
	}
	showAll(m)
}

// ShowMetrics shows metric info in console.
func ShowMetrics() {
	m := GetAll()
	showAll(m)
}

func showAll(m [Max]uint64) {
	fmt.Println("######### netevent metrics (", time.Now().Format("2006-01-02 15:04:05"), ") ###########")
	fmt.Printf("%-59s: %d\n", "# events forwarded to the current output", m[EventsForwarded])
	fmt.Printf("%-59s: %d\n", "# writes across all outputs", m[FramesWritten])
	fmt.Printf("%-59s: %d\n", "# poll wakeups", m[PollWakeups])
	fmt.Printf("%-59s: %d\n", "# writes dropped (output removed)", m[DroppedWrites])
	fmt.Printf("%-59s: %d\n", "# events suppressed by a hotkey match", m[HotkeyMatches])
	fmt.Printf("%-59s: %d\n", "# commands executed from the queue", m[CommandsExecuted])
	fmt.Printf("\n")
}
