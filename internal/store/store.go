package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/veridexhq/veridex/internal/model"
)

// Store is the durable home of every engine entity. Scored records
// (EvidenceLink, CrosswalkEdge, GapRecord) are never updated in place:
// recomputation inserts a new version and marks the prior rows
// superseded, so the engine can show what was true at any point in time.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the SQLite store at path. Use ":memory:" in
// tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.AutoMigrate(
		&model.StandardSet{},
		&model.StandardNode{},
		&model.GraphEdge{},
		&model.Artifact{},
		&model.ArtifactChunk{},
		&model.EvidenceLink{},
		&model.TrustSignal{},
		&model.CrosswalkEdge{},
		&model.GapRecord{},
		&model.CitationReport{},
	); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- standards graphs ---

// SaveGraph persists a fully-staged graph. Nodes and edges for the set
// are replaced in one transaction; this backs the in-memory registry, it
// is not the read path.
func (s *Store) SaveGraph(set model.StandardSet, nodes []model.StandardNode, edges []model.GraphEdge) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&set).Error; err != nil {
			return err
		}
		if err := tx.Where("set_id = ?", set.ID).Delete(&model.StandardNode{}).Error; err != nil {
			return err
		}
		if err := tx.Where("set_id = ?", set.ID).Delete(&model.GraphEdge{}).Error; err != nil {
			return err
		}
		if len(nodes) > 0 {
			if err := tx.Create(&nodes).Error; err != nil {
				return err
			}
		}
		if len(edges) > 0 {
			if err := tx.Create(&edges).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSets returns every persisted StandardSet
func (s *Store) LoadSets() ([]model.StandardSet, error) {
	var sets []model.StandardSet
	err := s.db.Find(&sets).Error
	return sets, err
}

// LoadGraph returns the persisted nodes and edges of one set
func (s *Store) LoadGraph(setID string) (model.StandardSet, []model.StandardNode, []model.GraphEdge, error) {
	var set model.StandardSet
	if err := s.db.First(&set, "id = ?", setID).Error; err != nil {
		return set, nil, nil, err
	}
	var nodes []model.StandardNode
	if err := s.db.Where("set_id = ?", setID).Find(&nodes).Error; err != nil {
		return set, nil, nil, err
	}
	var edges []model.GraphEdge
	if err := s.db.Where("set_id = ?", setID).Find(&edges).Error; err != nil {
		return set, nil, nil, err
	}
	return set, nodes, edges, nil
}

// --- artifacts ---

// CreateArtifact inserts a new artifact record
func (s *Store) CreateArtifact(a *model.Artifact) error {
	return s.db.Create(a).Error
}

// GetArtifact returns one artifact by id
func (s *Store) GetArtifact(id string) (*model.Artifact, error) {
	var a model.Artifact
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindArtifactByChecksum finds an account's artifact with the same content
func (s *Store) FindArtifactByChecksum(accountID, checksum string) (*model.Artifact, error) {
	var a model.Artifact
	err := s.db.First(&a, "account_id = ? AND checksum = ?", accountID, checksum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetIndexState moves an artifact through the indexing state machine
func (s *Store) SetIndexState(artifactID string, state model.IndexState) error {
	return s.db.Model(&model.Artifact{}).Where("id = ?", artifactID).
		Update("index_state", state).Error
}

// ListArtifactsByState returns artifacts in one index state; used by the
// scheduler to retry queued artifacts.
func (s *Store) ListArtifactsByState(state model.IndexState) ([]model.Artifact, error) {
	var out []model.Artifact
	err := s.db.Where("index_state = ?", state).Find(&out).Error
	return out, err
}

// DeleteArtifact removes an artifact and cascades to its chunks, links,
// trust signal, and citation report.
func (s *Store) DeleteArtifact(artifactID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&model.ArtifactChunk{},
			&model.EvidenceLink{},
			&model.TrustSignal{},
			&model.CitationReport{},
		} {
			if err := tx.Where("artifact_id = ?", artifactID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Artifact{}, "id = ?", artifactID).Error
	})
}

// ReplaceChunks swaps an artifact's chunk set in one transaction
func (s *Store) ReplaceChunks(artifactID string, chunks []model.ArtifactChunk) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("artifact_id = ?", artifactID).Delete(&model.ArtifactChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
}

// Chunks returns an artifact's chunks in order
func (s *Store) Chunks(artifactID string) ([]model.ArtifactChunk, error) {
	var out []model.ArtifactChunk
	err := s.db.Where("artifact_id = ?", artifactID).Order("ordinal").Find(&out).Error
	return out, err
}

// CorpusChunks returns every indexed chunk except the given artifact's;
// this is the comparison corpus for redundancy scoring.
func (s *Store) CorpusChunks(excludeArtifactID string) ([]model.ArtifactChunk, error) {
	var out []model.ArtifactChunk
	err := s.db.Where("artifact_id <> ?", excludeArtifactID).Find(&out).Error
	return out, err
}

// --- evidence links ---

// SupersedeEvidenceLinks replaces the live links for one (artifact, set)
// pair: prior versions are marked superseded and the new links get the
// next version number, all in one transaction.
func (s *Store) SupersedeEvidenceLinks(artifactID, setID string, links []model.EvidenceLink) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		version, err := nextVersion(tx, &model.EvidenceLink{}, "artifact_id = ? AND set_id = ?", artifactID, setID)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.EvidenceLink{}).
			Where("artifact_id = ? AND set_id = ? AND superseded = ?", artifactID, setID, false).
			Update("superseded", true).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range links {
			links[i].Version = version
			links[i].Superseded = false
			if links[i].ComputedAt.IsZero() {
				links[i].ComputedAt = now
			}
		}
		return tx.Create(&links).Error
	})
}

// LiveLinks returns the current (non-superseded) links for a set
func (s *Store) LiveLinks(setID string) ([]model.EvidenceLink, error) {
	var out []model.EvidenceLink
	err := s.db.Where("set_id = ? AND superseded = ?", setID, false).Find(&out).Error
	return out, err
}

// LiveLinksForArtifact returns an artifact's current links in a set
func (s *Store) LiveLinksForArtifact(artifactID, setID string) ([]model.EvidenceLink, error) {
	var out []model.EvidenceLink
	err := s.db.
		Where("artifact_id = ? AND set_id = ? AND superseded = ?", artifactID, setID, false).
		Order("confidence DESC").
		Find(&out).Error
	return out, err
}

// --- trust ---

// SaveTrust overwrites the artifact's trust signal with a new timestamp
func (s *Store) SaveTrust(ts *model.TrustSignal) error {
	return s.db.Save(ts).Error
}

// GetTrust returns an artifact's latest trust signal
func (s *Store) GetTrust(artifactID string) (*model.TrustSignal, error) {
	var ts model.TrustSignal
	if err := s.db.First(&ts, "artifact_id = ?", artifactID).Error; err != nil {
		return nil, err
	}
	return &ts, nil
}

// --- crosswalk ---

// SupersedePairEdges inserts new versions for specific (from,to) node
// pairs, marking only those pairs' prior rows superseded. Batch builds and
// refine both go through here, so accepted edges survive a refine intact.
func (s *Store) SupersedePairEdges(edges []model.CrosswalkEdge) error {
	if len(edges) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for i := range edges {
			e := &edges[i]
			version, err := nextVersion(tx, &model.CrosswalkEdge{}, "from_node = ? AND to_node = ?", e.FromNode, e.ToNode)
			if err != nil {
				return err
			}
			if err := tx.Model(&model.CrosswalkEdge{}).
				Where("from_node = ? AND to_node = ? AND superseded = ?", e.FromNode, e.ToNode, false).
				Update("superseded", true).Error; err != nil {
				return err
			}
			e.Version = version
			e.Superseded = false
			if e.ComputedAt.IsZero() {
				e.ComputedAt = now
			}
			if err := tx.Create(e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LiveCrosswalk returns the current edges between two sets
func (s *Store) LiveCrosswalk(fromSet, toSet string) ([]model.CrosswalkEdge, error) {
	var out []model.CrosswalkEdge
	err := s.db.
		Where("from_set = ? AND to_set = ? AND superseded = ?", fromSet, toSet, false).
		Find(&out).Error
	return out, err
}

// LiveCrosswalkTouching returns current edges where either side belongs to
// the set; used for cross-framework coverage credit.
func (s *Store) LiveCrosswalkTouching(setID string) ([]model.CrosswalkEdge, error) {
	var out []model.CrosswalkEdge
	err := s.db.
		Where("(from_set = ? OR to_set = ?) AND superseded = ?", setID, setID, false).
		Find(&out).Error
	return out, err
}

// --- gap records ---

// SaveGapSnapshot supersedes the set's live gap records and inserts the
// new snapshot. Superseded snapshots remain queryable for trend display.
func (s *Store) SaveGapSnapshot(setID string, records []model.GapRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		version, err := nextVersion(tx, &model.GapRecord{}, "set_id = ?", setID)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.GapRecord{}).
			Where("set_id = ? AND superseded = ?", setID, false).
			Update("superseded", true).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range records {
			records[i].Version = version
			records[i].Superseded = false
			if records[i].ComputedAt.IsZero() {
				records[i].ComputedAt = now
			}
		}
		return tx.Create(&records).Error
	})
}

// LiveGapRecords returns the authoritative snapshot for a set
func (s *Store) LiveGapRecords(setID string) ([]model.GapRecord, error) {
	var out []model.GapRecord
	err := s.db.Where("set_id = ? AND superseded = ?", setID, false).Find(&out).Error
	return out, err
}

// GapHistory returns every snapshot of one node, newest first
func (s *Store) GapHistory(nodeID string) ([]model.GapRecord, error) {
	var out []model.GapRecord
	err := s.db.Where("node_id = ?", nodeID).Order("version DESC").Find(&out).Error
	return out, err
}

// --- citations ---

// SaveCitationReport keeps only the latest validation result
func (s *Store) SaveCitationReport(r *model.CitationReport) error {
	return s.db.Save(r).Error
}

// GetCitationReport returns the latest result for an artifact
func (s *Store) GetCitationReport(artifactID string) (*model.CitationReport, error) {
	var r model.CitationReport
	if err := s.db.First(&r, "artifact_id = ?", artifactID).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// nextVersion returns max(version)+1 within a scope
func nextVersion(tx *gorm.DB, tableModel interface{}, query string, args ...interface{}) (int64, error) {
	var current int64
	err := tx.Model(tableModel).Where(query, args...).
		Select("COALESCE(MAX(version), 0)").Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}
