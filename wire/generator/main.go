package main

import (
	"github.com/olifog/steam.py/wire"
	"github.com/outofforest/proton"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message[wire.ChannelHello](),
		proton.Message[wire.ChannelKey](),
		proton.Message[wire.ChannelAccept](),
		proton.Message[wire.Logon](),
		proton.Message[wire.LogonResult](),
		proton.Message[wire.Heartbeat](),
		proton.Message[wire.LoggedOff](),
	)
}
