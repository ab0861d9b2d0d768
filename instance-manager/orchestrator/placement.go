package orchestrator

import (
	"sort"

	"github.com/saascore/saas-cloud/saasproto"
)

// PlacementPolicy picks the server of the given kind for a new
// instance. It returns "" if no server qualifies.
type PlacementPolicy func(inst *saasproto.Instance, kind saasproto.ServerKind, servers []saasproto.Server) string

// LowestSequence picks the server with the lowest sequence, then
// name.
func LowestSequence(inst *saasproto.Instance, kind saasproto.ServerKind, servers []saasproto.Server) string {
	candidates := []saasproto.Server{}
	for _, s := range servers {
		if s.Kind == kind {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Sequence != candidates[j].Sequence {
			return candidates[i].Sequence < candidates[j].Sequence
		}
		return candidates[i].Key.Name < candidates[j].Key.Name
	})
	return candidates[0].Key.Name
}
