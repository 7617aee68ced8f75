package builder

import "github.com/soundprediction/notegraph/pkg/types"

// CentralConcept returns the local id of the most connected concept. Each
// endpoint occurrence of a relationship counts once; ties go to the id seen
// first while scanning relationships. Endpoints that are not concepts of the
// extraction are ignored. With nothing counted, the first concept is central.
// An extraction without concepts has no central concept.
func CentralConcept(ex types.Extraction) string {
	if len(ex.Concepts) == 0 {
		return ""
	}
	known := conceptIDs(ex)

	counts := make(map[string]int)
	var order []string
	count := func(id string) {
		if _, ok := known[id]; !ok {
			return
		}
		if _, seen := counts[id]; !seen {
			order = append(order, id)
		}
		counts[id]++
	}
	for _, r := range ex.Relationships {
		count(r.Source)
		count(r.Target)
	}

	central, best := ex.Concepts[0].ID, 0
	for _, id := range order {
		if counts[id] > best {
			central, best = id, counts[id]
		}
	}
	return central
}

// AssignLevels returns the breadth-first distance of every concept from
// central over the undirected relationship graph. Concepts that cannot be
// reached get level 0.
func AssignLevels(ex types.Extraction, central string) map[string]int {
	known := conceptIDs(ex)
	adjacency := make(map[string][]string)
	for _, r := range ex.Relationships {
		_, srcOK := known[r.Source]
		_, dstOK := known[r.Target]
		if !srcOK || !dstOK {
			continue
		}
		adjacency[r.Source] = append(adjacency[r.Source], r.Target)
		adjacency[r.Target] = append(adjacency[r.Target], r.Source)
	}

	levels := make(map[string]int, len(ex.Concepts))
	if _, ok := known[central]; ok {
		levels[central] = 0
		queue := []string{central}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, next := range adjacency[current] {
				if _, visited := levels[next]; visited {
					continue
				}
				levels[next] = levels[current] + 1
				queue = append(queue, next)
			}
		}
	}

	for _, c := range ex.Concepts {
		if _, ok := levels[c.ID]; !ok {
			levels[c.ID] = 0
		}
	}
	return levels
}

func conceptIDs(ex types.Extraction) map[string]struct{} {
	ids := make(map[string]struct{}, len(ex.Concepts))
	for _, c := range ex.Concepts {
		ids[c.ID] = struct{}{}
	}
	return ids
}
