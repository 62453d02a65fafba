// Package cli constructs the poetry-up command-line interface. The root
// command is the upgrade command itself; this package layers the Viper
// configuration loader, embedded defaults, zap logging, and version reporting
// on top of it.
package cli
