package broadcast

// Outbound channels carry service notifications to every attached surface.
const (
	ChannelServerStatus      = "server:status-changed"
	ChannelServerLog         = "server:log"
	ChannelDataRefresh       = "data:refresh"
	ChannelAssetsExtracting  = "assets:extracting"
	ChannelAssetsReady       = "assets:ready"
	ChannelAssetsError       = "assets:error"
	ChannelServerPathChanged = "config:server-path-changed"
)

// Inbound channels are the commands a surface may invoke.
const (
	CommandServerStart   = "server:start"
	CommandServerStop    = "server:stop"
	CommandServerStatus  = "server:status"
	CommandServerLogs    = "server:logs"
	CommandAssetsExtract = "assets:extract"
	CommandAssetsStatus  = "assets:status"
	CommandWatcherStart  = "watcher:start"
	CommandWatcherStop   = "watcher:stop"
	CommandModsToggle    = "mods:toggle"
	CommandGetServerPath = "config:get-server-path"
	CommandSetServerPath = "config:set-server-path"
)

var outboundChannels = map[string]struct{}{
	ChannelServerStatus:      {},
	ChannelServerLog:         {},
	ChannelDataRefresh:       {},
	ChannelAssetsExtracting:  {},
	ChannelAssetsReady:       {},
	ChannelAssetsError:       {},
	ChannelServerPathChanged: {},
}

var inboundChannels = map[string]struct{}{
	CommandServerStart:   {},
	CommandServerStop:    {},
	CommandServerStatus:  {},
	CommandServerLogs:    {},
	CommandAssetsExtract: {},
	CommandAssetsStatus:  {},
	CommandWatcherStart:  {},
	CommandWatcherStop:   {},
	CommandModsToggle:    {},
	CommandGetServerPath: {},
	CommandSetServerPath: {},
}

// OutboundAllowed reports whether services may broadcast on channel.
func OutboundAllowed(channel string) bool {
	_, ok := outboundChannels[channel]
	return ok
}

// InboundAllowed reports whether a surface may invoke channel.
func InboundAllowed(channel string) bool {
	_, ok := inboundChannels[channel]
	return ok
}
