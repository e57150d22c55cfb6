// ABOUTME: Build and product identification
// ABOUTME: Reported in the server hello, mDNS TXT records and the version command
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.1.0"

const (
	Product      = "Sunshine Audio"
	Manufacturer = "Sunshine"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
