// Package explorer turns web search into a self-updating retrieval store.
//
// Explorer takes research queries, finds candidate pages through SearXNG,
// fetches and chunks the useful ones, and stores the embedded chunks in a
// vector index scoped by workspace. Later queries are answered straight
// from the index; anything missing is searched, fetched and ingested on
// the fly.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/introlix/explorer/cmd/explorer@latest
//
// Create a configuration:
//
//	search:
//	  host: "http://localhost:8888"
//
//	embedder:
//	  type: "ollama"
//	  model: "embeddinggemma"
//
//	vector_store:
//	  provider: "chromem"
//	  chromem:
//	    persist_path: "./data"
//
// Start the server:
//
//	explorer serve --config config.yaml
//
// Then explore:
//
//	curl -X POST http://localhost:8080/v1/explore \
//	  -d '{"queries": ["solar panel efficiency"], "workspace_id": "research"}'
//
// The library can also be embedded directly; the runtime package assembles
// a working engine from the same configuration.
package explorer
