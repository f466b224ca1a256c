package thought

import (
	"sort"
	"time"
)

// Evaluate scores every node in nodes against the link graph they form as
// of now, and returns the full aggregate (all scored nodes, top 10 by
// impact, orphans, and summary rates).
func Evaluate(nodes []Node, now time.Time) Aggregate {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	incoming := make(map[string]int)
	incomingLatest := make(map[string]time.Time)
	mapMemberships := make(map[string]int)

	for _, n := range nodes {
		for _, target := range n.OutgoingLinks {
			if _, exists := byID[target]; !exists {
				continue
			}
			incoming[target]++
			if n.ModTime.After(incomingLatest[target]) {
				incomingLatest[target] = n.ModTime
			}
			if n.IsMap {
				mapMemberships[target]++
			}
		}
	}

	scored := make([]Scored, 0, len(nodes))
	var sum float64
	for _, n := range nodes {
		in := incoming[n.ID]
		memberships := mapMemberships[n.ID]
		age := now.Sub(n.ModTime)

		penalty := 0.0
		if age > orphanGracePeriod {
			daysSinceLastIncoming := age
			if latest, ok := incomingLatest[n.ID]; ok {
				daysSinceLastIncoming = now.Sub(latest)
			}
			penalty = agePenaltyRate * daysSinceLastIncoming.Hours() / 24
		}

		impact := incomingLinkWeight*float64(in) + mapMembershipWeight*float64(memberships) - penalty
		isOrphan := impact <= 0 && age > orphanGracePeriod

		s := Scored{Node: n, IncomingLinks: in, MapMemberships: memberships, ImpactScore: impact, IsOrphan: isOrphan}
		scored = append(scored, s)
		sum += impact
	}

	agg := Aggregate{Scored: scored}
	for _, s := range scored {
		if s.IsOrphan {
			agg.Orphans = append(agg.Orphans, s)
		}
	}
	if len(scored) > 0 {
		agg.OrphanRate = float64(len(agg.Orphans)) / float64(len(scored))
		agg.AvgImpactScore = sum / float64(len(scored))
	}

	top := append([]Scored(nil), scored...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].ImpactScore > top[j].ImpactScore })
	if len(top) > 10 {
		top = top[:10]
	}
	agg.TopByImpact = top

	return agg
}

// BuildTopology assembles the graph-topology context consumed by the
// morning brief: per-map backlink counts and open questions, thin maps,
// confidence distribution, and sink nodes.
func BuildTopology(nodes []Node) Topology {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	backlinks := make(map[string]int)
	outgoingCount := make(map[string]int)
	for _, n := range nodes {
		outgoingCount[n.ID] = len(n.OutgoingLinks)
		for _, target := range n.OutgoingLinks {
			if _, exists := byID[target]; exists {
				backlinks[target]++
			}
		}
	}

	topo := Topology{ConfidenceDistribution: map[Confidence]int{}}
	for _, n := range nodes {
		if !n.IsMap {
			topo.ConfidenceDistribution[n.Confidence]++
			continue
		}
		count := backlinks[n.ID]
		thin := count < thinMapThreshold
		topo.Maps = append(topo.Maps, MapSummary{
			ID:            n.ID,
			BacklinkCount: count,
			IsThin:        thin,
			OpenQuestions: n.OpenQuestions,
		})
		if thin {
			topo.ThinMaps = append(topo.ThinMaps, n.ID)
		}
	}

	for _, n := range nodes {
		if n.IsMap {
			continue
		}
		if backlinks[n.ID] >= sinkNodeMinIncoming && outgoingCount[n.ID] <= sinkNodeMaxOutgoing {
			topo.SinkNodes = append(topo.SinkNodes, n.ID)
		}
	}

	sort.Slice(topo.Maps, func(i, j int) bool { return topo.Maps[i].ID < topo.Maps[j].ID })
	sort.Strings(topo.ThinMaps)
	sort.Strings(topo.SinkNodes)

	return topo
}
