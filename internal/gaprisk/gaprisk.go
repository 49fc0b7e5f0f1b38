package gaprisk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/graph"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

// timeNow is the clock (injectable for tests)
var timeNow = time.Now

// Predictor computes per-node coverage gaps for a standard set. Fully
// deterministic: the same stored links and crosswalk edges always produce
// the same snapshot.
type Predictor struct {
	store  *store.Store
	graphs *graph.Registry
	log    *logger.Logger
	cfg    model.GapConfig
}

// NewPredictor creates a gap predictor
func NewPredictor(st *store.Store, graphs *graph.Registry, log *logger.Logger, cfg model.GapConfig) *Predictor {
	return &Predictor{store: st, graphs: graphs, log: log, cfg: cfg}
}

// maxRecommendations bounds the advice list; the worst gaps come first,
// so the cut never hides the most urgent nodes.
const maxRecommendations = 5

// Snapshot is one full gap computation over a set. Records are ordered
// worst gap first.
type Snapshot struct {
	SetID           string            `json:"set_id"`
	Records         []model.GapRecord `json:"records"`
	Coverage        float64           `json:"coverage"`   // Mean coverage contribution across the set
	RiskIndex       float64           `json:"risk_index"` // Mean gap score across the set
	Recommendations []string          `json:"recommendations"`
	ComputedAt      time.Time         `json:"computed_at"`
}

// nodeEvidence is the per-node input to the scoring function
type nodeEvidence struct {
	hasDirect     bool
	bestConf      float64
	newestAgeDays float64 // Age of the newest supporting artifact
	crosswalkSup  float64 // Best confidence of a crosswalk edge to a covered node
}

// Compute scores every node of the set and persists the snapshot
func (p *Predictor) Compute(setID string) (*Snapshot, error) {
	g, ok := p.graphs.Get(setID)
	if !ok {
		return nil, fmt.Errorf("standard set %s is not ingested", setID)
	}

	links, err := p.store.LiveLinks(setID)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}

	evidence := make(map[string]*nodeEvidence)
	now := timeNow().UTC()

	artifactAge := make(map[string]float64)
	for _, link := range links {
		ev, ok := evidence[link.NodeID]
		if !ok {
			ev = &nodeEvidence{newestAgeDays: math.Inf(1)}
			evidence[link.NodeID] = ev
		}
		if link.Confidence > ev.bestConf {
			ev.bestConf = link.Confidence
		}

		age, cached := artifactAge[link.ArtifactID]
		if !cached {
			artifact, err := p.store.GetArtifact(link.ArtifactID)
			if err != nil {
				p.log.Warn("linked artifact missing", "artifact_id", link.ArtifactID, "error", err)
				continue
			}
			ref := artifact.UploadedAt
			if artifact.EffectiveDate != nil {
				ref = *artifact.EffectiveDate
			}
			age = now.Sub(ref).Hours() / 24
			if age < 0 {
				age = 0
			}
			artifactAge[link.ArtifactID] = age
		}
		if age < ev.newestAgeDays {
			ev.newestAgeDays = age
		}
	}
	for _, ev := range evidence {
		// A link only counts as direct coverage above the confidence floor
		ev.hasDirect = ev.bestConf >= p.cfg.MinLinkConfidence
	}

	if err := p.attachCrosswalkSupport(setID, evidence); err != nil {
		return nil, err
	}

	var records []model.GapRecord
	totalGap := 0.0
	totalContribution := 0.0
	for _, node := range g.Nodes() {
		ev := evidence[node.ID]
		if ev == nil {
			ev = &nodeEvidence{newestAgeDays: math.Inf(1)}
		}
		contribution, gap, drivers := p.scoreNode(ev)
		records = append(records, model.GapRecord{
			ID:           uuid.NewString(),
			SetID:        setID,
			NodeID:       node.ID,
			Contribution: round3(contribution),
			GapScore:     round3(gap),
			Drivers:      drivers,
			ComputedAt:   now,
		})
		totalGap += gap
		totalContribution += contribution
	}

	// Ranked gap list: worst first, node id breaks ties
	sort.Slice(records, func(i, j int) bool {
		if records[i].GapScore != records[j].GapScore {
			return records[i].GapScore > records[j].GapScore
		}
		return records[i].NodeID < records[j].NodeID
	})

	if err := p.store.SaveGapSnapshot(setID, records); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	coverage := 0.0
	riskIndex := 0.0
	if len(records) > 0 {
		coverage = totalContribution / float64(len(records))
		riskIndex = totalGap / float64(len(records))
	}
	return &Snapshot{
		SetID:           setID,
		Records:         records,
		Coverage:        round3(coverage),
		RiskIndex:       round3(riskIndex),
		Recommendations: recommendations(records),
		ComputedAt:      now,
	}, nil
}

// recommendations templates advice from each record's top driver, worst
// gaps first. Templated, never free-generated, so the output is stable.
func recommendations(records []model.GapRecord) []string {
	out := []string{}
	for _, r := range records {
		if len(out) == maxRecommendations {
			break
		}
		if r.GapScore == 0 || len(r.Drivers) == 0 {
			continue
		}
		out = append(out, recommendFor(r.NodeID, r.Drivers[0]))
	}
	return out
}

func recommendFor(nodeID, driver string) string {
	switch driver {
	case model.DriverNoEvidence:
		return fmt.Sprintf("%s: collect and map evidence; nothing is linked", nodeID)
	case model.DriverBelowThreshold:
		return fmt.Sprintf("%s: strengthen evidence; no link clears the confidence floor", nodeID)
	case model.DriverCrosswalkOnly:
		return fmt.Sprintf("%s: add direct evidence; coverage rests on crosswalk credit alone", nodeID)
	case model.DriverStaleEvidence:
		return fmt.Sprintf("%s: refresh evidence with newer artifacts", nodeID)
	case model.DriverWeakCrosswalk:
		return fmt.Sprintf("%s: build crosswalk support from an adjacent framework", nodeID)
	}
	return fmt.Sprintf("%s: review evidence coverage", nodeID)
}

// attachCrosswalkSupport finds, for every node of the set, the strongest
// crosswalk edge leading to a node that itself carries direct evidence.
func (p *Predictor) attachCrosswalkSupport(setID string, evidence map[string]*nodeEvidence) error {
	edges, err := p.store.LiveCrosswalkTouching(setID)
	if err != nil {
		return fmt.Errorf("load crosswalk: %w", err)
	}
	if len(edges) == 0 {
		return nil
	}

	// Nodes with direct evidence in the counterpart sets
	covered := make(map[string]bool)
	seenSets := make(map[string]bool)
	for _, edge := range edges {
		for _, other := range []string{edge.FromSet, edge.ToSet} {
			if other == setID || seenSets[other] {
				continue
			}
			seenSets[other] = true
			otherLinks, err := p.store.LiveLinks(other)
			if err != nil {
				return fmt.Errorf("load links for %s: %w", other, err)
			}
			for _, l := range otherLinks {
				covered[l.NodeID] = true
			}
		}
	}

	for _, edge := range edges {
		local, remote := edge.FromNode, edge.ToNode
		if edge.ToSet == setID {
			local, remote = edge.ToNode, edge.FromNode
		}
		if !covered[remote] {
			continue
		}
		ev, ok := evidence[local]
		if !ok {
			ev = &nodeEvidence{newestAgeDays: math.Inf(1)}
			evidence[local] = ev
		}
		if edge.Confidence > ev.crosswalkSup {
			ev.crosswalkSup = edge.Confidence
		}
	}
	return nil
}

// scoreNode turns one node's evidence into contribution, gap score, and
// templated drivers. Direct evidence contributes fully, crosswalk-only
// coverage earns partial credit, nothing earns zero.
func (p *Predictor) scoreNode(ev *nodeEvidence) (float64, float64, []string) {
	var contribution float64
	var drivers []string

	switch {
	case ev.hasDirect:
		contribution = 1
	case ev.crosswalkSup > 0:
		contribution = p.cfg.CrosswalkCredit
		if ev.bestConf > 0 {
			drivers = append(drivers, model.DriverBelowThreshold)
		}
		drivers = append(drivers, model.DriverCrosswalkOnly)
	default:
		contribution = 0
		if ev.bestConf > 0 {
			drivers = append(drivers, model.DriverBelowThreshold)
		} else {
			drivers = append(drivers, model.DriverNoEvidence)
		}
	}

	recency := 0.0
	if ev.hasDirect {
		window := float64(p.cfg.RecencyWindowDays)
		recency = 1 - ev.newestAgeDays/window
		if recency < 0 {
			recency = 0
		}
		if recency == 0 {
			drivers = append(drivers, model.DriverStaleEvidence)
		}
	}

	if ev.hasDirect && ev.crosswalkSup == 0 {
		drivers = append(drivers, model.DriverWeakCrosswalk)
	}

	gap := 1 - (p.cfg.WeightContribution*contribution +
		p.cfg.WeightRecency*recency +
		p.cfg.WeightCrosswalk*ev.crosswalkSup)
	if gap < 0 {
		gap = 0
	}
	if gap > 1 {
		gap = 1
	}
	return contribution, gap, drivers
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
