// ABOUTME: Version information for chanmix
// ABOUTME: Product identity reported by the CLI and the play server
package version

import "fmt"

const (
	// Version is the software release
	Version = "0.1.0"

	// Product is the product name announced to clients
	Product = "chanmix"

	// Manufacturer identifies the publisher
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version as one line
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
