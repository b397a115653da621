// Global index config.
package config

// Name of the index.
const DBName = "pmhash"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// Directory used when no backing directory is given.
const DefaultDirectory = "data/"

// The number of key/value slots in a single bucket.
const BucketSlots = 32

// The number of bucket-sized slots in a single allocation unit.
const UnitSlots = 32

// Fixed names of the durable records inside the backing directory.
const (
	MetadataFileName = "pm_ehash_metadata"
	CatalogFileName  = "pm_ehash_catalog"
)

// Name of the log file written by the command line tools.
const LogFileName = "pmhash.log"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
