package workflow

// Version is the release of the module. Builds override it with
// -ldflags "-X github.com/delta5-hq/d5-sub001.Version=...".
var Version = "0.1.0-dev"
