package permit

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// GlobalSite is the siteId sentinel for checks that are not scoped to a
// site. It keeps global and site-scoped results for the same
// user/resource/action on distinct cache keys.
const GlobalSite = "*"

func siteCheckKey(uid, siteID string, res Resource, action Action, sub SubResource) string {
	if sub != "" {
		return fmt.Sprintf("%s-%s-%s-%s-%s", uid, siteID, res, action, sub)
	}
	return fmt.Sprintf("%s-%s-%s-%s", uid, siteID, res, action)
}

func globalCheckKey(uid string, res Resource, action Action, sub SubResource) string {
	return siteCheckKey(uid, GlobalSite, res, action, sub)
}

// bulkCheckKey hashes the logical content of a batch so that two batches
// holding the same checks in different orders share one cache entry.
func bulkCheckKey(uid, siteID string, checks []Check) string {
	parts := make([]string, len(checks))
	for i, c := range checks {
		parts[i] = c.logicalKey()
	}
	sort.Strings(parts)
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s-bulk-%s-%s", uid, siteID, hex.EncodeToString(sum[:]))
}
