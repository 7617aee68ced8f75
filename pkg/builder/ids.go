package builder

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/soundprediction/notegraph/pkg/normalize"
)

// StableIDLength is the number of hex characters kept from the digest.
const StableIDLength = 16

// StableID derives the node id for a label owned by userID. The same user
// and label always produce the same id regardless of case or dash variant.
func StableID(label, userID string) string {
	sum := md5.Sum([]byte(normalize.ForID(label) + "_" + userID))
	return hex.EncodeToString(sum[:])[:StableIDLength]
}
