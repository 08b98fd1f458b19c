package main

import (
	"context"
	"runtime"
	"time"

	"envcode-go/bus"
	"envcode-go/services/config"
	"envcode-go/services/hal"
	"envcode-go/services/heartbeat"
	"envcode-go/types"
)

const deviceID = "pico-env"

func printTopicWith(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	print(t.String())
	println()
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)

	println("[main] bootstrapping bus …")
	b := bus.NewBus(4)
	halConn := b.NewConnection("hal")
	uiConn := b.NewConnection("ui")

	println("[main] subscribing to hal/# for diagnostics …")
	mon := uiConn.Subscribe(bus.T("hal", "#"))
	go func() {
		for m := range mon.Channel() {
			printTopicWith("[monitor] <-", m.Topic)
		}
	}()

	println("[main] starting hal.Run …")
	go hal.Run(ctx, halConn)

	if err := (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("[main] heartbeat:", err.Error())
	}

	println("[main] publishing embedded config for", deviceID, "…")
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	time.Sleep(500 * time.Millisecond)

	// Ask for an immediate reading and the trimming block.
	readNow := bus.T("hal", "capability", string(types.KindTemperature), 0, "control", "read_now")
	if reply, err := uiConn.RequestWait(ctx, uiConn.NewMessage(readNow, nil, false)); err != nil {
		println("[main] read_now error:", err.Error())
	} else {
		printTopicWith("[main] read_now reply on", reply.Topic)
	}
	calib := bus.T("hal", "capability", string(types.KindPressure), 0, "control", "calibration")
	if reply, err := uiConn.RequestWait(ctx, uiConn.NewMessage(calib, nil, false)); err != nil {
		println("[main] calibration error:", err.Error())
	} else if c, ok := reply.Payload.(types.Calibration); ok {
		println("[main] dig_T1:", c.T[0], "dig_P1:", c.P[0])
	}

	for {
		printMem()
		time.Sleep(10 * time.Second)
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
