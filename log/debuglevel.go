package log

// Debug levels are bits in the debugLevel mask.
const (
	DebugLevelApi uint64 = 1 << iota
	DebugLevelInfra
	DebugLevelStore
	DebugLevelDeploy
	DebugLevelRemote
	DebugLevelEvents
	DebugLevelInfo
)

var DebugLevelValues = map[string]uint64{
	"api":    DebugLevelApi,
	"infra":  DebugLevelInfra,
	"store":  DebugLevelStore,
	"deploy": DebugLevelDeploy,
	"remote": DebugLevelRemote,
	"events": DebugLevelEvents,
	"info":   DebugLevelInfo,
}
