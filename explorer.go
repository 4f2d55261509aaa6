package explorer

import (
	"github.com/introlix/explorer/pkg/config"
	engine "github.com/introlix/explorer/pkg/explorer"
	"github.com/introlix/explorer/pkg/runtime"
)

// Re-export commonly used types
type (
	// Config is the root configuration.
	Config = config.Config

	// Engine orchestrates explore runs.
	Engine = engine.Explorer

	// Result is one retrieved chunk with its provenance and score.
	Result = engine.Result

	// Mode selects what an explore run returns.
	Mode = engine.Mode

	// Runtime owns a fully assembled engine.
	Runtime = runtime.Runtime
)

// Answer modes.
const (
	ModeRetrieve   = engine.ModeRetrieve
	ModeIngestOnly = engine.ModeIngestOnly
)

// Re-export commonly used functions
var (
	LoadConfig    = config.Load
	DefaultConfig = config.Default
	NewRuntime    = runtime.NewWithConfig
)
