// Package cursor defines the iteration contract shared by index implementations.
package cursor

import (
	"pmhash/pkg/entry"
)

// Interface for a cursor that traverses an index.
type Cursor interface {
	Next() bool                     // Moves the cursor to the next entry; returns true once it is past the end
	GetEntry() (entry.Entry, error) // Returns the entry at the position of the cursor
	Close()                         // Called to indicate that the cursor is done being used
}
