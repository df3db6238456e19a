package main

// Flag names for Viper binding.
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"

	// run command flags
	FlagDaemon         = "daemon"
	FlagTUI            = "tui"
	FlagTerminalCount  = "terminal-count"
	FlagTerminalCmd    = "terminal-command"
	FlagStabilityMS    = "stability-threshold"
	FlagAutoContinue   = "auto-continue"
	FlagGuardEnabled   = "guard-enabled"
	FlagStoreBackend   = "store-backend"

	// stop command flags
	FlagForce = "force"

	// enqueue command flags
	FlagTarget    = "target"
	FlagExecuteAt = "execute-at"

	// timer command flags
	FlagTimerAction = "action"
	FlagTimerValue  = "value"

	// keyword command flags
	FlagKeywordAction   = "action"
	FlagKeywordResponse = "response"
	FlagKeywordCooldown = "cooldown"
	FlagKeywordFile     = "file"

	// queue command flags
	FlagQueueAction = "action"
	FlagQueueID     = "id"

	// status/cancel flags
	FlagJSON = "json"
)
