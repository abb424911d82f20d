package badger

import (
	"encoding/hex"
	"fmt"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records and indexes live under prefixed
// keys, one namespace per data type.
//
// Data Type        Prefix   Key Format                          Value Type
// ==========================================================================
// Record           "f:"     f:<id>                              fileData (JSON)
// Children index   "c:"     c:<owner>:<parent>:<seq>            child id (bytes)
// Owner index      "o:"     o:<owner>:<id>                      empty
// Sequence         "seq:"   seq:children                        badger.Sequence
//
// 1. Record (f:)
//    - One entry per file or folder, point lookup by id
//
// 2. Children index (c:)
//    - One entry per child, so listing a folder is a prefix scan over
//      "c:<owner>:<parent>:"
//    - Root-level records use an empty parent: "c:<owner>::<seq>"
//    - <seq> is a zero-padded monotonic sequence number, so the scan returns
//      children in insertion order
//    - The record stores its own index key, which Delete uses to drop it
//
// 3. Owner index (o:)
//    - One entry per record, so listing an owner's records (usage accounting)
//      scans only that owner's keys
//
// Owner ids come from the identity provider and may contain ':', so they are
// hex-encoded inside keys. Parent ids are UUIDs and are stored as-is.

const (
	// prefixFile is the key prefix for record data
	prefixFile = "f:"

	// prefixChild is the key prefix for the children index
	prefixChild = "c:"

	// prefixOwner is the key prefix for the owner index
	prefixOwner = "o:"

	// keySequence names the badger sequence used for child ordering
	keySequence = "seq:children"
)

// keyFile generates a key for record data.
//
// Format: "f:<id>"
func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

// keyChild generates a children index key.
//
// Format: "c:<owner>:<parent>:<seq>"
func keyChild(ownerID, parentID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%020d", prefixChild, ownerKey(ownerID), parentID, seq))
}

// keyChildPrefix generates the prefix for scanning the children of a parent.
//
// Format: "c:<owner>:<parent>:"
func keyChildPrefix(ownerID, parentID string) []byte {
	return []byte(prefixChild + ownerKey(ownerID) + ":" + parentID + ":")
}

// keyOwner generates an owner index key.
//
// Format: "o:<owner>:<id>"
func keyOwner(ownerID, id string) []byte {
	return []byte(prefixOwner + ownerKey(ownerID) + ":" + id)
}

// keyOwnerPrefix generates the prefix for scanning an owner's records.
func keyOwnerPrefix(ownerID string) []byte {
	return []byte(prefixOwner + ownerKey(ownerID) + ":")
}

// ownerKey encodes an owner id for use inside a key.
func ownerKey(ownerID string) string {
	return hex.EncodeToString([]byte(ownerID))
}
