// Command treegift drives the gift request engine from the terminal.
//
// It embeds the same wizard, ingestion, and submission packages a browser
// host would. Drafts are submitted with `treegift submit draft.toml`;
// spreadsheets can be checked with `treegift recipients check` before any
// upload. `treegift status` runs the preflight checks against the configured
// services and `treegift logs` tails the log file.
package main
