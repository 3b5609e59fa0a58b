// Package commands defines the parley CLI.
//
// Commands
//
//   - keygen   Mint a shared secret, or a whole secrets file with --init
//   - serve    Run the relay server
//   - chat     Connect to a relay and chat from the terminal
//
// # Implementation
//
// All commands share a --config flag naming the secrets file. serve only
// needs the server secret; chat needs the room secret too and will prompt
// for both (without echo) when no file exists.
package commands
