package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/aadityasp/agreegraph/models"
)

// Cache keys are derived deterministically from stage name plus normalized
// inputs so identical logical requests collide across runs and processes.

// FetchKey keys the context-fetch result for one entity.
func FetchKey(entityName string) string {
	return "fetch:" + models.NormalizeName(entityName)
}

// EntitiesKey keys an extraction result by text content hash.
func EntitiesKey(text string) string {
	return "entities:" + HashText(text)[:16]
}

// RelationshipsKey keys relationship inference by the sorted node name set, so
// the same nodes in any order hit the same entry.
func RelationshipsKey(nodes []models.GraphNode) string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, models.NormalizeName(n.Name))
	}
	sort.Strings(names)
	return "relationships:" + HashText(strings.Join(names, "|"))[:16]
}

// HashText returns the hex sha256 of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
